package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	offlinecache "github.com/Hemakotibonthada/CancerDetector-sub005"
	"github.com/Hemakotibonthada/CancerDetector-sub005/kvstore/sqlite"
)

func main() {
	ctx := context.Background()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	store, err := sqlite.Open(filepath.Join(os.TempDir(), "offline-cache.db"))
	if err != nil {
		panic(err)
	}
	defer store.Close()

	cfg, err := offlinecache.ConfigFromEnv()
	if err != nil {
		panic(err)
	}

	cache, err := offlinecache.NewCache[string](store, "scans", &cfg, nil, nil)
	if err != nil {
		panic(err)
	}

	cache.StartSweeper(ctx)
	defer cache.StopSweeper()

	cache.Set(ctx, "report/123", "benign", 10*time.Minute)

	if val, ok := cache.Get(ctx, "report/123"); ok {
		fmt.Println("cached report:", val)
	}

	queue, err := offlinecache.NewQueue(store, "mutations", &cfg, nil, nil)
	if err != nil {
		panic(err)
	}

	queue.Enqueue(ctx, offlinecache.Operation{
		Method: "POST",
		Target: "/api/v1/reports/123/notes",
		Body:   []byte(`{"note":"follow up in 6 months"}`),
	}, offlinecache.PriorityHigh, -1)

	report := queue.Drain(ctx, func(_ context.Context, item offlinecache.QueueItem) error {
		fmt.Println("delivering", item.Operation.Method, item.Operation.Target)
		return errors.New("still offline")
	})
	fmt.Printf("drain: delivered=%d failed=%d remaining=%d\n",
		len(report.Delivered), len(report.Failed), report.Remaining)

	searches, err := offlinecache.NewBoundedList[string](store, "recent-searches", 10,
		func(s string) string { return s }, nil)
	if err != nil {
		panic(err)
	}

	searches.Add(ctx, "melanoma stage 1")
	searches.Add(ctx, "biopsy results")
	fmt.Println("recent searches:", searches.Items())

	fmt.Printf("summary: %+v\n", cache.Summary(ctx))
}
