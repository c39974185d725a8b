package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&EvacInfo{},
	&Run{},
	&Episode{},
	&Outcome{},
	&PopulationSample{},
}

// DatabaseModelsSQLite holds the tables created in the in-memory SQLite database. Postgres adds
// the PostGIS extension on top of the same set.
var DatabaseModelsSQLite = []interface{}{
	&EvacInfo{},
	&Run{},
	&Episode{},
	&Outcome{},
	&PopulationSample{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// EvacInfo describes the site that owns this database
type EvacInfo struct {
	gorm.Model
	SiteName        string `json:"siteName" gorm:"size:127"`
	SiteDescription string `json:"siteDescription" gorm:"size:255"`
	SiteWebsite     string `json:"siteURL" gorm:"size:255"`
}

func (*EvacInfo) TableName() string {
	return "evac_infos"
}

////////////////////////
// RUN MODELS
////////////////////////

// Run is one simulation process lifetime. It closes with the aggregate report.
type Run struct {
	ID          string         `json:"id" gorm:"primaryKey;size:36"`
	StartTime   time.Time      `json:"startTime" gorm:"type:timestamptz;NOT NULL;"`
	EndTime     sql.NullTime   `json:"endTime" gorm:"type:timestamptz;default:NULL"`
	PanicMode   string         `json:"panicMode" gorm:"size:16;index:idx_run_panic_mode"`
	DatasetPath string         `json:"datasetPath" gorm:"size:255"`
	Occupants   int            `json:"occupants"`
	Agents      int            `json:"agents"`
	Tag         string         `json:"tag" gorm:"size:127"`
	Location    geom.Point     `json:"location"`
	Config      datatypes.JSON `json:"config" gorm:"default:'{}'"`

	TotalEpisodes int     `json:"totalEpisodes"`
	SuccessRate   float64 `json:"successRate"`
	AvgTime       float64 `json:"avgTime"`
	AvgHealth     float64 `json:"avgHealth"`

	Episodes []Episode
}

func (*Run) TableName() string {
	return "runs"
}

// Episode is the summary written when an episode ends
type Episode struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Time      time.Time `json:"time" gorm:"type:timestamptz;"`
	RunID     string    `json:"runId" gorm:"size:36;index:idx_episode_run_id"`
	Run       Run       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RunID;"`
	Index     int       `json:"index"`
	Duration  float64   `json:"duration"`
	Total     int       `json:"total"`
	Escaped   int       `json:"escaped"`
	Dead      int       `json:"dead"`
	HealthSum float64   `json:"healthSum"`
	TimedOut  bool      `json:"timedOut"`
}

func (*Episode) TableName() string {
	return "episodes"
}

// Outcome is a single death or escape
type Outcome struct {
	ID              uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time            time.Time `json:"time" gorm:"type:timestamptz;"`
	RunID           string    `json:"runId" gorm:"size:36;index:idx_outcome_run_id"`
	Run             Run       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RunID;"`
	Episode         int       `json:"episode" gorm:"index:idx_outcome_episode"`
	OccupantID      uint32    `json:"occupantId"`
	Kind            string    `json:"kind" gorm:"size:8"`
	RemainingHealth float32   `json:"remainingHealth"`
	ElapsedTime     float64   `json:"elapsedTime"`
	State           string    `json:"state" gorm:"size:16"`
	// local simulation coordinates, Y up
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`

	Location geom.Point    `json:"location"`
	Trail    geom.Geometry `json:"-"` // LineStringZ of the recorded path
}

func (*Outcome) TableName() string {
	return "outcomes"
}

// PopulationSample aggregates the population at one snapshot tick
type PopulationSample struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time" gorm:"type:timestamptz;index:idx_sample_time"`
	RunID     string    `json:"runId" gorm:"size:36;index:idx_sample_run_id"`
	Run       Run       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RunID;"`
	Episode   int       `json:"episode"`
	SimTime   float64   `json:"simTime"`
	Alive     int       `json:"alive"`
	Escaped   int       `json:"escaped"`
	Dead      int       `json:"dead"`
	Calm      int       `json:"calm"`
	Anxious   int       `json:"anxious"`
	Panicked  int       `json:"panicked"`
	Followers int       `json:"followers"`
	AvgHealth float64   `json:"avgHealth"`
	AvgPanic  float64   `json:"avgPanic"`
}

func (*PopulationSample) TableName() string {
	return "population_samples"
}
