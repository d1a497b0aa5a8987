package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"spotmatch/app/internal/config"
	"spotmatch/app/internal/models"
	"spotmatch/app/internal/store"
)

func main() {
	cfg := config.Load()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	s := store.New(db, rdb)

	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <command> [args]")
		fmt.Println("Commands: sweep [max_age], stats, show-profile <user_id>")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "sweep":
		maxAge := 5 * time.Minute
		if len(os.Args) > 2 {
			maxAge, err = time.ParseDuration(os.Args[2])
			if err != nil {
				fmt.Println("Invalid max_age. Use a duration like 10m or 1h.")
				os.Exit(1)
			}
		}
		swept, err := sweepStalePresence(s, db, maxAge)
		if err != nil {
			log.Fatalf("Error sweeping presence: %v", err)
		}
		fmt.Printf("Marked %d stale profiles offline.\n", swept)
	case "stats":
		if err := printStats(db); err != nil {
			log.Fatalf("Error collecting stats: %v", err)
		}
	case "show-profile":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin show-profile <user_id>")
			os.Exit(1)
		}
		profile, err := s.GetProfile(os.Args[2])
		if err != nil {
			log.Fatalf("Error loading profile: %v", err)
		}
		fmt.Printf("%s (%d, %s) online=%v last_seen=%s\n",
			profile.DisplayName, profile.Age, profile.Gender,
			profile.IsOnline, profile.LastSeen.Format(time.RFC3339))
	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}

// sweepStalePresence flips profiles offline when their last keepalive is
// older than maxAge. Covers clients that died without the final offline
// write. Going through the store publishes the change to live feeds.
func sweepStalePresence(s *store.Service, db *gorm.DB, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)

	var stale []models.Profile
	if err := db.Where("is_online = ? AND last_seen < ?", true, cutoff).Find(&stale).Error; err != nil {
		return 0, err
	}

	for _, p := range stale {
		upd := models.PresenceUpdate{IsOnline: false, LastSeen: p.LastSeen}
		if err := s.UpdatePresence(p.ID, upd); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}

func printStats(db *gorm.DB) error {
	counts := []struct {
		label string
		model interface{}
	}{
		{"profiles", &models.Profile{}},
		{"connection requests", &models.ConnectionRequest{}},
		{"conversations", &models.Conversation{}},
		{"messages", &models.Message{}},
		{"place swipes", &models.PlaceSwipe{}},
	}
	for _, c := range counts {
		var n int64
		if err := db.Model(c.model).Count(&n).Error; err != nil {
			return err
		}
		fmt.Printf("%-20s %d\n", c.label, n)
	}

	var converged int64
	if err := db.Model(&models.Conversation{}).Where("place_match_id IS NOT NULL").Count(&converged).Error; err != nil {
		return err
	}
	fmt.Printf("%-20s %d\n", "place matches", converged)
	return nil
}
