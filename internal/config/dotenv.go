package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// RoomSeed describes a built-in room created at startup. Built-in rooms
// cannot be deleted and survive idle expiry.
type RoomSeed struct {
	ID   string
	Name string
}

type Config struct {
	Addr                         string
	LogLevel                     string
	LogFormat                    string
	DefaultMaxPlayers            int
	ChatHistoryLimit             int
	IdleRoomExpirySeconds        int
	RoomSweepIntervalSeconds     int
	CompactionIntervalSeconds    int
	ChatRetentionHours           int
	SnapshotFlushIntervalSeconds int
	DBMaxOpenConns               int
	DBMaxIdleConns               int
	DBConnMaxLifetimeSeconds     int
	DBConnMaxIdleTimeSeconds     int
	BuiltinRooms                 []RoomSeed
}

func Default() Config {
	return Config{
		Addr:                         ":8080",
		LogLevel:                     "info",
		LogFormat:                    "text",
		DefaultMaxPlayers:            4,
		ChatHistoryLimit:             50,
		IdleRoomExpirySeconds:        1800,
		RoomSweepIntervalSeconds:     60,
		CompactionIntervalSeconds:    300,
		ChatRetentionHours:           720,
		SnapshotFlushIntervalSeconds: 30,
		DBMaxOpenConns:               10,
		DBMaxIdleConns:               10,
		DBConnMaxLifetimeSeconds:     300,
		DBConnMaxIdleTimeSeconds:     60,
		BuiltinRooms: []RoomSeed{
			{ID: "room-a", Name: "Room A"},
			{ID: "room-b", Name: "Room B"},
			{ID: "room-c", Name: "Room C"},
			{ID: "room-d", Name: "Room D"},
		},
	}
}

func Load() Config {
	cfg := Default()
	if raw := os.Getenv("PORT"); raw != "" {
		cfg.Addr = ":" + raw
	}
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}
	if raw := os.Getenv("LOG_FORMAT"); raw != "" {
		cfg.LogFormat = raw
	}
	if raw := os.Getenv("DEFAULT_MAX_PLAYERS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DefaultMaxPlayers = value
		}
	}
	if raw := os.Getenv("CHAT_HISTORY_LIMIT"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.ChatHistoryLimit = value
		}
	}
	if raw := os.Getenv("IDLE_ROOM_EXPIRY_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.IdleRoomExpirySeconds = value
		}
	}
	if raw := os.Getenv("ROOM_SWEEP_INTERVAL_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.RoomSweepIntervalSeconds = value
		}
	}
	if raw := os.Getenv("COMPACTION_INTERVAL_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.CompactionIntervalSeconds = value
		}
	}
	if raw := os.Getenv("CHAT_RETENTION_HOURS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.ChatRetentionHours = value
		}
	}
	if raw := os.Getenv("SNAPSHOT_FLUSH_INTERVAL_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.SnapshotFlushIntervalSeconds = value
		}
	}
	if raw := os.Getenv("DB_MAX_OPEN_CONNS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBMaxOpenConns = value
		}
	}
	if raw := os.Getenv("DB_MAX_IDLE_CONNS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBMaxIdleConns = value
		}
	}
	if raw := os.Getenv("DB_CONN_MAX_LIFETIME_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBConnMaxLifetimeSeconds = value
		}
	}
	if raw := os.Getenv("DB_CONN_MAX_IDLE_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBConnMaxIdleTimeSeconds = value
		}
	}
	if raw := os.Getenv("BUILTIN_ROOMS"); raw != "" {
		if seeds := parseRoomSeeds(raw); len(seeds) > 0 {
			cfg.BuiltinRooms = seeds
		}
	}
	return cfg
}

// parseRoomSeeds parses a comma separated list of id:name pairs,
// e.g. "room-a:Room A,room-b:Room B". Entries without a name reuse
// the id as the display name.
func parseRoomSeeds(raw string) []RoomSeed {
	var seeds []RoomSeed
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, name, ok := strings.Cut(entry, ":")
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			name = id
		}
		seeds = append(seeds, RoomSeed{ID: id, Name: name})
	}
	return seeds
}
