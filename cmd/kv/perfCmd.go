package kv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/qKV/api"
	"github.com/ValentinKolb/qKV/cmd/util"
	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for qKV clusters",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfDuration         = 5 * time.Second
	perfSkip             = make([]string, 0)
)

// perfTest is one load pattern. op gets the worker local counter.
type perfTest struct {
	name    string
	prepare bool
	op      func(ctx context.Context, getKey func(int) string, i int) error
}

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. put,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of concurrent workers"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the put-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "duration"
	perfTestCmd.Flags().Duration(key, 5*time.Second, util.WrapString("How long every test runs"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfDuration = viper.GetDuration("duration")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for qKV clusters")
	fmt.Println()
	fmt.Printf("Endpoint: %s\n", viper.GetString("endpoint"))
	fmt.Printf("Replicas: %q\n", replicas())
	fmt.Printf("Threads: %d, Keys: %d, Duration: %s\n", perfNumThreads, perfKeySpread, perfDuration)
	fmt.Println()

	value := []byte("test")
	largeValue := make([]byte, perfLargeValueSizeKB*1024)

	tests := []perfTest{
		{name: "put", op: func(ctx context.Context, getKey func(int) string, i int) error {
			return apiClient.Put(ctx, getKey(i), value, replicas())
		}},
		{name: "put-large", op: func(ctx context.Context, getKey func(int) string, i int) error {
			return apiClient.Put(ctx, getKey(i), largeValue, replicas())
		}},
		{name: "get", prepare: true, op: func(ctx context.Context, getKey func(int) string, i int) error {
			_, err := apiClient.Get(ctx, getKey(i), replicas())
			return err
		}},
		{name: "get-missing", op: func(ctx context.Context, getKey func(int) string, i int) error {
			_, err := apiClient.Get(ctx, getKey(i), replicas())
			if errors.Is(err, api.ErrNotFound) {
				return nil
			}
			return err
		}},
		{name: "delete", prepare: true, op: func(ctx context.Context, getKey func(int) string, i int) error {
			return apiClient.Delete(ctx, getKey(i), replicas())
		}},
		{name: "mixed", prepare: true, op: func(ctx context.Context, getKey func(int) string, i int) error {
			var err error
			switch i % 3 {
			case 0:
				err = apiClient.Put(ctx, getKey(i), value, replicas())
			case 1:
				_, err = apiClient.Get(ctx, getKey(i), replicas())
			case 2:
				err = apiClient.Delete(ctx, getKey(i), replicas())
			}
			if errors.Is(err, api.ErrNotFound) {
				return nil
			}
			return err
		}},
	}

	registry := metrics.NewRegistry()
	var names []string
	for _, test := range tests {
		if slices.Contains(perfSkip, test.name) {
			fmt.Printf("%-14sskipped\n", test.name)
			continue
		}
		timer := metrics.GetOrRegisterTimer(test.name, registry)
		errCount := metrics.GetOrRegisterCounter(test.name+".errors", registry)
		runTest(test, timer, errCount)
		printResult(test.name, timer, errCount.Count())
		names = append(names, test.name)
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, names, registry); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// runTest runs test with perfNumThreads workers for perfDuration
func runTest(test perfTest, timer metrics.Timer, errCount metrics.Counter) {
	getKey, iter := getKeys(test.name)

	ctx := context.Background()
	if test.prepare {
		iter(func(k string) {
			if err := apiClient.Put(ctx, k, []byte("test"), replicas()); err != nil {
				log.Printf("(%s) - error preparing key: %v\n", test.name, err)
			}
		})
	}

	deadline := time.Now().Add(perfDuration)
	var wg sync.WaitGroup
	for w := 0; w < perfNumThreads; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; time.Now().Before(deadline); i += perfNumThreads {
				start := time.Now()
				err := test.op(ctx, getKey, i)
				timer.UpdateSince(start)
				if err != nil {
					errCount.Inc(1)
				}
			}
		}(w)
	}
	wg.Wait()

	iter(func(k string) {
		if err := apiClient.Delete(ctx, k, replicas()); err != nil {
			log.Printf("(%s) - error deleting key: %v\n", test.name, err)
		}
	})
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) string, func(func(string))) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}

	getKey := func(i int) string {
		return keys[i%perfKeySpread]
	}

	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// printResult prints the result of a test in a formatted way
func printResult(test string, t metrics.Timer, failed int64) {
	ps := t.Percentiles([]float64{0.5, 0.99})
	fmt.Printf("%-14s%8d ops %10.0f ops/sec  mean %-10s p50 %-10s p99 %-10s errors %d\n",
		test, t.Count(), t.RateMean(),
		time.Duration(t.Mean()), time.Duration(ps[0]), time.Duration(ps[1]), failed)
}

// writeResultsToCSV writes the results of the tests in names to a CSV file
func writeResultsToCSV(csvPath string, names []string, registry metrics.Registry) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "Ops", "OpsPerSec", "MeanNs", "P50Ns", "P99Ns", "MaxNs", "Errors",
		"Endpoint", "Replicas", "Threads", "LargeValueSizeKB", "Keys", "Duration",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, name := range names {
		t := metrics.GetOrRegisterTimer(name, registry)
		errs := metrics.GetOrRegisterCounter(name+".errors", registry).Count()
		ps := t.Percentiles([]float64{0.5, 0.99})

		row := []string{
			name,
			strconv.FormatInt(t.Count(), 10),
			fmt.Sprintf("%.0f", t.RateMean()),
			fmt.Sprintf("%.0f", t.Mean()),
			fmt.Sprintf("%.0f", ps[0]),
			fmt.Sprintf("%.0f", ps[1]),
			strconv.FormatInt(t.Max(), 10),
			strconv.FormatInt(errs, 10),
			viper.GetString("endpoint"),
			replicas(),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
			perfDuration.String(),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", name, err)
		}
	}

	return nil
}
