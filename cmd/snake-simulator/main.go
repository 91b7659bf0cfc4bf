package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/snake-lounge/internal/domain"
	"github.com/snake-lounge/internal/kafka"
)

func main() {
	// Command line flags
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "snake-events", "Kafka topic")
	sessionList := flag.String("sessions", "", "Session IDs to drive (comma-separated, required)")
	userID := flag.Int64("user", 0, "User ID credited with a score event when a game ends (0 = none)")
	modeFlag := flag.String("mode", string(domain.ModeWalls), "Game mode of the sessions")
	width := flag.Int("width", 20, "Board width")
	height := flag.Int("height", 20, "Board height")
	speed := flag.Int("speed", 150, "Tick interval in milliseconds")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	flag.Parse()

	mode, err := domain.ParseMode(*modeFlag)
	if err != nil {
		log.Fatalf("Invalid mode: %v", err)
	}
	sessionIDs, err := parseSessionIDs(*sessionList)
	if err != nil {
		log.Fatalf("Invalid sessions: %v", err)
	}
	if *width < 4 || *height < 4 || *speed <= 0 {
		log.Fatalf("Board must be at least 4x4 and speed positive")
	}

	runID := uuid.NewString()
	brokerList := strings.Split(*brokers, ",")

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("  🐍 Snake Snapshot Simulator")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  Run:              %s\n", runID)
	fmt.Printf("  Brokers:          %s\n", *brokers)
	fmt.Printf("  Topic:            %s\n", *topic)
	fmt.Printf("  Sessions:         %v\n", sessionIDs)
	fmt.Printf("  Mode:             %s\n", mode)
	fmt.Printf("  Board:            %dx%d @ %dms\n", *width, *height, *speed)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	// Configure Sarama producer
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 50 * time.Millisecond
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}

	var successCount, errorCount, gamesOver int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	done := make(chan struct{})

	// Keyed by session so one session's snapshots land on one partition in order
	send := func(key string, event kafka.Event) {
		data, err := json.Marshal(event)
		if err != nil {
			log.Printf("Failed to marshal event: %v", err)
			return
		}
		msg := &sarama.ProducerMessage{
			Topic:   *topic,
			Key:     sarama.StringEncoder(key),
			Value:   sarama.ByteEncoder(data),
			Headers: []sarama.RecordHeader{{Key: []byte("run_id"), Value: []byte(runID)}},
		}
		select {
		case producer.Input() <- msg:
		case <-done:
		}
	}

	var players sync.WaitGroup
	for i, id := range sessionIDs {
		players.Add(1)
		go func() {
			defer players.Done()
			rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(i)))
			key := strconv.FormatInt(id, 10)
			ticker := time.NewTicker(time.Duration(*speed) * time.Millisecond)
			defer ticker.Stop()

			g := newGame(rng, *width, *height, mode, *speed)
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
				}
				alive := g.step()
				send(key, kafka.SnapshotEvent(id, g.snapshot()))
				if alive {
					continue
				}
				atomic.AddInt64(&gamesOver, 1)
				if *userID > 0 {
					send(key, kafka.ScoreEvent(*userID, g.state.Score, mode))
				}
				g = newGame(rng, *width, *height, mode, *speed)
			}
		}()
	}

	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var deadline <-chan time.Time
	if *duration > 0 {
		deadline = time.After(*duration)
	}

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	for running := true; running; {
		select {
		case <-sigChan:
			fmt.Println("\n\nShutting down...")
			running = false
		case <-deadline:
			fmt.Println("\n\nDuration reached, shutting down...")
			running = false
		case <-statsTicker.C:
			fmt.Printf("[%s] Sent: %d | Errors: %d | Games over: %d\n",
				time.Now().Format("15:04:05"),
				atomic.LoadInt64(&successCount),
				atomic.LoadInt64(&errorCount),
				atomic.LoadInt64(&gamesOver),
			)
		}
	}

	close(done)
	players.Wait()
	producer.AsyncClose()
	wg.Wait()
	fmt.Printf("\n✓ Completed. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
}

func parseSessionIDs(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("at least one session id is required")
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("bad session id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
