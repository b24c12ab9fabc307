package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

type target struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Expect   int    `json:"expect"`
	Critical bool   `json:"critical"`
	Public   bool   `json:"public"`
	Envelope bool   `json:"envelope"`
}

type targetFile struct {
	Targets []target `json:"targets"`
}

type result struct {
	Target     target
	Status     int
	Duration   time.Duration
	BaseStatus int
	DataMatch  bool
	Compared   bool
	Problem    string
	Error      error

	body []byte
}

func (r result) failed() bool {
	return r.Error != nil || r.Problem != ""
}

func main() {
	var (
		base        string
		baseline    string
		email       string
		password    string
		targetsPath string
		timeout     time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL under test")
	flag.StringVar(&baseline, "baseline", "", "optional second deployment to compare data payloads against")
	flag.StringVar(&email, "email", os.Getenv("SMOKE_EMAIL"), "operator email")
	flag.StringVar(&password, "password", os.Getenv("SMOKE_PASSWORD"), "operator password")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "smoke_check", "targets.json"), "path to JSON targets file")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	targets, err := loadTargets(targetsPath)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	token, err := login(client, base, email, password)
	if err != nil {
		log.Fatalf("login against %s: %v", base, err)
	}
	var baselineToken string
	if baseline != "" {
		if baselineToken, err = login(client, baseline, email, password); err != nil {
			log.Fatalf("login against %s: %v", baseline, err)
		}
	}

	var (
		results  []result
		critical int
		minor    int
	)
	for _, t := range targets {
		res := check(client, base, token, t)
		if baseline != "" && res.Error == nil && res.Problem == "" {
			compareBaseline(client, baseline, baselineToken, &res)
		}
		if res.failed() {
			if t.Critical {
				critical++
			} else {
				minor++
			}
		}
		results = append(results, res)
	}

	printReport(results)
	fmt.Printf("Critical failures: %d, Other failures: %d\n", critical, minor)
	if critical > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file targetFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return file.Targets, nil
}

func login(client *http.Client, base, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", errors.New("email and password are required")
	}
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", err
	}
	resp, err := client.Post(strings.TrimRight(base, "/")+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login returned %d", resp.StatusCode)
	}
	var envelope struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", err
	}
	if envelope.Data.AccessToken == "" {
		return "", errors.New("login response carried no access token")
	}
	return envelope.Data.AccessToken, nil
}

func check(client *http.Client, base, token string, tgt target) result {
	res := result{Target: tgt}
	status, body, dur, err := perform(client, base, token, tgt)
	res.Duration = dur
	if err != nil {
		res.Error = err
		return res
	}
	res.Status = status
	res.body = body
	want := tgt.Expect
	if want == 0 {
		want = http.StatusOK
	}
	if status != want {
		res.Problem = fmt.Sprintf("expected %d", want)
		return res
	}
	if tgt.Envelope {
		var envelope map[string]any
		if err := json.Unmarshal(body, &envelope); err != nil {
			res.Problem = "body is not JSON"
			return res
		}
		if _, ok := envelope["data"]; !ok {
			res.Problem = "envelope has no data field"
		}
	}
	return res
}

func compareBaseline(client *http.Client, baseline, token string, res *result) {
	if !res.Target.Envelope {
		return
	}
	status, body, _, err := perform(client, baseline, token, res.Target)
	if err != nil {
		res.Problem = fmt.Sprintf("baseline request failed: %v", err)
		return
	}
	res.Compared = true
	res.BaseStatus = status
	res.DataMatch = status == res.Status && dataEqual(res.body, body)
	if !res.DataMatch {
		res.Problem = "data differs from baseline"
	}
}

func perform(client *http.Client, base, token string, tgt target) (int, []byte, time.Duration, error) {
	if client == nil {
		return 0, nil, 0, errors.New("nil client")
	}
	method := strings.ToUpper(strings.TrimSpace(tgt.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := tgt.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req, err := http.NewRequest(method, strings.TrimRight(base, "/")+path, nil)
	if err != nil {
		return 0, nil, 0, err
	}
	if token != "" && !tgt.Public {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, time.Since(start), fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, time.Since(start), nil
}

// dataEqual compares the data members of two envelopes; meta differs per request.
func dataEqual(a, b []byte) bool {
	var aj, bj map[string]any
	if err := json.Unmarshal(a, &aj); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bj); err != nil {
		return false
	}
	return reflect.DeepEqual(aj["data"], bj["data"])
}

func printReport(results []result) {
	fmt.Println("Smoke Check Report")
	fmt.Println("==================")
	for _, res := range results {
		status := "OK"
		if res.failed() {
			status = "FAIL"
		}
		fmt.Printf("[%s] %s %s -> %d (%s)\n", status, res.Target.Method, res.Target.Path, res.Status, res.Duration)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
		}
		if res.Problem != "" {
			fmt.Printf("  Problem: %s | Critical: %t\n", res.Problem, res.Target.Critical)
		}
		if res.Compared {
			fmt.Printf("  Baseline status: %d | Data match: %t\n", res.BaseStatus, res.DataMatch)
		}
	}
}
