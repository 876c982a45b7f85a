// Package config provides YAML-based configuration loading for scrutineer.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level scrutineer configuration, loaded from scrutineer.yaml.
type Config struct {
	Competition     string                 `yaml:"competition"`
	Database        DatabaseConfig         `yaml:"database"`
	Schedule        ScheduleConfig         `yaml:"schedule"`
	InspectionTypes []InspectionTypeConfig `yaml:"inspection_types"`
	PenaltyRules    []PenaltyRuleConfig    `yaml:"penalty_rules"`
	Booking         BookingConfig          `yaml:"booking"`
	Batch           BatchConfig            `yaml:"batch"`
	Recalculate     RecalculateConfig      `yaml:"recalculate"`
	Board           BoardConfig            `yaml:"board"`
}

// DatabaseConfig selects and addresses the persistent store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // mysql or sqlite
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	User   string `yaml:"user"`
	Name   string `yaml:"name"`
	Path   string `yaml:"path"` // sqlite file
}

// ScheduleConfig is the default daily operating window for inspections.
type ScheduleConfig struct {
	DayStart string `yaml:"day_start"`
	DayEnd   string `yaml:"day_end"`
}

// InspectionTypeConfig seeds one inspection type.
type InspectionTypeConfig struct {
	Key             string   `yaml:"key"`
	Name            string   `yaml:"name"`
	DurationMinutes int      `yaml:"duration_minutes"`
	ConcurrentSlots int      `yaml:"concurrent_slots"`
	SortOrder       int      `yaml:"sort_order"`
	WindowStart     string   `yaml:"window_start"`
	WindowEnd       string   `yaml:"window_end"`
	Prerequisites   []string `yaml:"prerequisites"`
	Inactive        bool     `yaml:"inactive"`
}

// PenaltyRuleConfig seeds one penalty rule.
type PenaltyRuleConfig struct {
	Name         string  `yaml:"name"`
	EventType    string  `yaml:"event_type"`
	IncidentType string  `yaml:"incident_type"`
	PenaltyType  string  `yaml:"penalty_type"`
	PenaltyValue float64 `yaml:"penalty_value"`
	MaxCount     int     `yaml:"max_count"`
	Inactive     bool    `yaml:"inactive"`
}

// BookingConfig tunes the booking commit path.
type BookingConfig struct {
	MaxConflictRetries int `yaml:"max_conflict_retries"`
}

// BatchConfig tunes the penalty and results batch jobs.
type BatchConfig struct {
	PerItemTimeout time.Duration `yaml:"per_item_timeout"`
	Concurrency    int           `yaml:"concurrency"`
}

// RecalculateConfig optionally schedules penalty + results recalculation.
type RecalculateConfig struct {
	Cron string `yaml:"cron"` // 5-field cron expression; empty disables
}

// BoardConfig configures the booking board refresher and HTTP server.
type BoardConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	Port            int           `yaml:"port"`
}

var validPenaltyTypes = map[string]bool{
	"time_penalty":     true,
	"percentage":       true,
	"point_deduction":  true,
	"disqualification": true,
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
		if c.Database.Name == "" {
			c.Database.Name = "scrutineer"
		}
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "scrutineer.db"
	}
	if c.Schedule.DayStart == "" {
		c.Schedule.DayStart = "08:00"
	}
	if c.Schedule.DayEnd == "" {
		c.Schedule.DayEnd = "18:00"
	}
	for i := range c.InspectionTypes {
		if c.InspectionTypes[i].ConcurrentSlots == 0 {
			c.InspectionTypes[i].ConcurrentSlots = 1
		}
		if c.InspectionTypes[i].Name == "" {
			c.InspectionTypes[i].Name = c.InspectionTypes[i].Key
		}
	}
	if c.Booking.MaxConflictRetries == 0 {
		c.Booking.MaxConflictRetries = 3
	}
	if c.Batch.PerItemTimeout == 0 {
		c.Batch.PerItemTimeout = 10 * time.Second
	}
	if c.Batch.Concurrency == 0 {
		c.Batch.Concurrency = 4
	}
	if c.Board.RefreshInterval == 0 {
		c.Board.RefreshInterval = 15 * time.Second
	}
	if c.Board.Port == 0 {
		c.Board.Port = 8080
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be mysql or sqlite", c.Database.Driver))
	}
	if !validClock(c.Schedule.DayStart) || !validClock(c.Schedule.DayEnd) {
		errs = append(errs, "schedule.day_start and schedule.day_end must be HH:MM")
	} else if c.Schedule.DayStart >= c.Schedule.DayEnd {
		errs = append(errs, "schedule.day_start must be before schedule.day_end")
	}

	keys := make(map[string]bool)
	for i, t := range c.InspectionTypes {
		if t.Key == "" {
			errs = append(errs, fmt.Sprintf("inspection_types[%d].key is required", i))
			continue
		}
		if keys[t.Key] {
			errs = append(errs, fmt.Sprintf("inspection_types[%d].key %q is duplicated", i, t.Key))
		}
		keys[t.Key] = true
		if t.DurationMinutes <= 0 {
			errs = append(errs, fmt.Sprintf("inspection_types[%d].duration_minutes must be positive", i))
		}
		if t.ConcurrentSlots < 1 {
			errs = append(errs, fmt.Sprintf("inspection_types[%d].concurrent_slots must be at least 1", i))
		}
		if (t.WindowStart == "") != (t.WindowEnd == "") {
			errs = append(errs, fmt.Sprintf("inspection_types[%d] needs both window_start and window_end", i))
		} else if t.WindowStart != "" && (!validClock(t.WindowStart) || !validClock(t.WindowEnd)) {
			errs = append(errs, fmt.Sprintf("inspection_types[%d] window must be HH:MM", i))
		}
	}
	for i, t := range c.InspectionTypes {
		for _, req := range t.Prerequisites {
			if req == t.Key {
				errs = append(errs, fmt.Sprintf("inspection_types[%d] cannot require itself", i))
			} else if !keys[req] {
				errs = append(errs, fmt.Sprintf("inspection_types[%d] requires unknown type %q", i, req))
			}
		}
	}
	if cyc := c.prerequisiteCycle(); cyc != "" {
		errs = append(errs, fmt.Sprintf("prerequisite cycle through %q", cyc))
	}

	for i, r := range c.PenaltyRules {
		if r.Name == "" {
			errs = append(errs, fmt.Sprintf("penalty_rules[%d].name is required", i))
		}
		if r.EventType == "" || r.IncidentType == "" {
			errs = append(errs, fmt.Sprintf("penalty_rules[%d] needs event_type and incident_type", i))
		}
		if !validPenaltyTypes[r.PenaltyType] {
			errs = append(errs, fmt.Sprintf("penalty_rules[%d].penalty_type %q is not recognized", i, r.PenaltyType))
		}
	}
	if c.Batch.Concurrency < 1 {
		errs = append(errs, "batch.concurrency must be at least 1")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// prerequisiteCycle returns a key on a prerequisite cycle, or "" if the graph
// is acyclic.
func (c *Config) prerequisiteCycle() string {
	edges := make(map[string][]string)
	for _, t := range c.InspectionTypes {
		edges[t.Key] = t.Prerequisites
	}
	for _, t := range c.InspectionTypes {
		for _, req := range t.Prerequisites {
			if reachable(edges, req, t.Key, make(map[string]bool)) {
				return t.Key
			}
		}
	}
	return ""
}

// reachable performs a DFS from current following prerequisite edges.
func reachable(edges map[string][]string, current, target string, visited map[string]bool) bool {
	if current == target {
		return true
	}
	if visited[current] {
		return false
	}
	visited[current] = true
	for _, next := range edges[current] {
		if reachable(edges, next, target, visited) {
			return true
		}
	}
	return false
}

func validClock(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil && len(s) == 5
}
