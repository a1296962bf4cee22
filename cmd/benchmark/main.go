package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/planetqradio/creditledger/internal/auth"
	"github.com/planetqradio/creditledger/internal/domain"
	"github.com/planetqradio/creditledger/internal/logging"
	"github.com/planetqradio/creditledger/internal/models"
	"github.com/planetqradio/creditledger/internal/service"
)

var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
	totalUsers  int
	jwtSecret   string
	jwtIssuer   string
	adminID     int64
)

var (
	totalRequests uint64
	success200    uint64
	fail4xx       uint64
	failOther     uint64
)

var log *logrus.Logger

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
	flag.IntVar(&totalUsers, "users", 1000, "Seeded user ids 1..N")
	flag.StringVar(&jwtSecret, "secret", os.Getenv("JWT_SECRET"), "JWT signing secret of the target server")
	flag.StringVar(&jwtIssuer, "issuer", "planetq-ledger", "JWT issuer of the target server")
	flag.Int64Var(&adminID, "admin", 1, "User id the admin token is issued for")
}

// creditTally counts what the benchmark credited per user. A request that
// failed in transport (usually the client timeout) may still have committed
// on the server, so its amount is kept apart as uncertain.
type creditTally struct {
	mu        sync.Mutex
	amount    map[int64]int64
	uncertain map[int64]int64
}

func newCreditTally() *creditTally {
	return &creditTally{amount: make(map[int64]int64), uncertain: make(map[int64]int64)}
}

func (t *creditTally) add(userID, amount int64) {
	t.mu.Lock()
	t.amount[userID] += amount
	t.mu.Unlock()
}

func (t *creditTally) addUncertain(userID, amount int64) {
	t.mu.Lock()
	t.uncertain[userID] += amount
	t.mu.Unlock()
}

func (t *creditTally) users() []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]int64, 0, len(t.amount)+len(t.uncertain))
	for id := range t.amount {
		ids = append(ids, id)
	}
	for id := range t.uncertain {
		if _, ok := t.amount[id]; !ok {
			ids = append(ids, id)
		}
	}
	return ids
}

type outcome int

const (
	outcomeExact outcome = iota
	// outcomeIndeterminate means the gain is explained by requests whose
	// response never arrived.
	outcomeIndeterminate
	outcomeLost
)

// classify judges a user's observed balance gain against the confirmed and
// uncertain credits sent to them. Every uncertain request carries a positive
// amount, so any gain between the confirmed total and confirmed plus
// uncertain can come from some subset of them having committed.
func classify(delta, credited, uncertain int64) outcome {
	switch {
	case delta == credited:
		return outcomeExact
	case delta > credited && delta <= credited+uncertain:
		return outcomeIndeterminate
	default:
		return outcomeLost
	}
}

type verifyResult struct {
	lost          int
	indeterminate int
}

func main() {
	flag.Parse()
	log = logging.New("info", "text")

	if jwtSecret == "" {
		log.Fatal("a JWT secret is required (-secret or JWT_SECRET)")
	}
	token, err := auth.NewTokenManager(jwtSecret, jwtIssuer, 2*duration+time.Minute).
		Generate(domain.Caller{UserID: adminID, Role: domain.RoleAdmin})
	if err != nil {
		log.WithError(err).Fatal("unable to issue admin token")
	}
	client := &http.Client{Timeout: 5 * time.Second}

	log.WithFields(logrus.Fields{"workload": workload, "workers": concurrency, "duration": duration}).Info("starting benchmark")

	tally := newCreditTally()
	before := snapshotBalances(client, token)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go worker(&wg, start, client, token, tally)
	}
	wg.Wait()
	elapsed := time.Since(start)

	res := verify(client, token, before, tally)
	printResults(elapsed, res)
	if res.lost > 0 {
		os.Exit(1)
	}
}

func worker(wg *sync.WaitGroup, start time.Time, client *http.Client, token string, tally *creditTally) {
	defer wg.Done()

	for time.Since(start) < duration {
		userID := pickUser()
		amount := int64(rand.Intn(10) + 1)

		body, _ := json.Marshal(models.AddCreditsRequest{TargetUserID: userID, Amount: amount})
		req, _ := http.NewRequest(http.MethodPost, targetURL+"/api/v1/admin/credits", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			tally.addUncertain(userID, amount)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch {
		case resp.StatusCode == http.StatusOK:
			atomic.AddUint64(&success200, 1)
			tally.add(userID, amount)
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			atomic.AddUint64(&fail4xx, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func pickUser() int64 {
	if workload == "hotspot" && rand.Float32() < 0.90 {
		// Hotspot: 90% of traffic goes to user 2 (user 1 is the admin)
		return 2
	}
	return int64(rand.Intn(totalUsers) + 1)
}

func getJSON(client *http.Client, token, path string, dst any) error {
	req, err := http.NewRequest(http.MethodGet, targetURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func snapshotBalances(client *http.Client, token string) map[int64]int64 {
	balances := make(map[int64]int64, totalUsers)
	for id := int64(1); id <= int64(totalUsers); id++ {
		var v service.BalanceView
		if err := getJSON(client, token, fmt.Sprintf("/api/v1/users/%d/balance", id), &v); err != nil {
			log.WithError(err).WithField("user_id", id).Fatal("unable to read starting balance")
		}
		balances[id] = v.Credits
	}
	return balances
}

// verify checks that every credited user gained what was credited and that
// their ledger still sums to their balance.
func verify(client *http.Client, token string, before map[int64]int64, tally *creditTally) verifyResult {
	var res verifyResult
	for _, id := range tally.users() {
		credited, uncertain := tally.amount[id], tally.uncertain[id]
		fields := logrus.Fields{"user_id": id, "expected": before[id] + credited, "uncertain": uncertain}

		var v service.Verification
		if err := getJSON(client, token, fmt.Sprintf("/api/v1/admin/users/%d/verify", id), &v); err != nil {
			log.WithError(err).WithFields(fields).Error("verification request failed")
			res.lost++
			continue
		}
		fields["balance"] = v.Balance
		fields["ledger_sum"] = v.LedgerSum

		if !v.Consistent {
			log.WithFields(fields).Error("ledger does not sum to balance")
			res.lost++
			continue
		}
		switch classify(v.Balance-before[id], credited, uncertain) {
		case outcomeIndeterminate:
			log.WithFields(fields).Warn("balance includes credits whose response timed out")
			res.indeterminate++
		case outcomeLost:
			log.WithFields(fields).Error("lost update detected")
			res.lost++
		}
	}
	return res
}

func printResults(d time.Duration, res verifyResult) {
	total := atomic.LoadUint64(&totalRequests)
	ok := atomic.LoadUint64(&success200)
	f4xx := atomic.LoadUint64(&fail4xx)
	fErr := atomic.LoadUint64(&failOther)

	results := map[string]interface{}{
		"workload":       workload,
		"duration_sec":   d.Seconds(),
		"total_requests": total,
		"throughput_tps": float64(total) / d.Seconds(),
		"success":        ok,
		"client_errors":  f4xx,
		"errors":         fErr,
		"lost_updates":   res.lost,
		"indeterminate":  res.indeterminate,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		log.WithError(err).Warn("unable to save results")
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
