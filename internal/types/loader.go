package types

import "time"

// LoaderType identifies where a volume loader pulls its records from
type LoaderType string

const (
	LoaderLocal LoaderType = "LOCAL"
	LoaderGCS   LoaderType = "GCS"
	LoaderS3    LoaderType = "S3"
	LoaderHTTP  LoaderType = "HTTP"
	LoaderSFTP  LoaderType = "SFTP"
)

// LoaderStatus is the lifecycle status of a volume loader
type LoaderStatus string

const (
	LoaderDisabled  LoaderStatus = "DISABLED"
	LoaderIdle      LoaderStatus = "IDLE"
	LoaderScheduled LoaderStatus = "SCHEDULED"
	LoaderRunning   LoaderStatus = "RUNNING"
	LoaderError     LoaderStatus = "ERROR"
)

// TransformKind selects the single transformation a field mapping applies
type TransformKind string

const (
	TransformNone         TransformKind = ""
	TransformUppercase    TransformKind = "uppercase"
	TransformLowercase    TransformKind = "lowercase"
	TransformTrim         TransformKind = "trim"
	TransformNumber       TransformKind = "number"
	TransformDate         TransformKind = "date"
	TransformRegexExtract TransformKind = "regex_extract"
	TransformTemplate     TransformKind = "template"
	TransformLookup       TransformKind = "lookup"
	TransformSplit        TransformKind = "split"
)

// FieldMapping maps one raw source column onto a work-item draft field
type FieldMapping struct {
	Source        string            `json:"source"`
	Target        string            `json:"target"`
	Required      bool              `json:"required,omitempty"`
	DefaultValue  string            `json:"defaultValue,omitempty"`
	Transform     TransformKind     `json:"transform,omitempty"`
	TransformArg  string            `json:"transformArg,omitempty"` // regex pattern, template, split separator, or date layout
	Lookup        map[string]string `json:"lookup,omitempty"`
	LookupDefault string            `json:"lookupDefault,omitempty"`
}

// LoaderDefaults fill in draft fields the mappings left empty
type LoaderDefaults struct {
	WorkType           string `json:"workType,omitempty"`
	Priority           int    `json:"priority,omitempty"`
	PayloadURLTemplate string `json:"payloadUrlTemplate,omitempty"`
}

// ProcessingOptions tune how uploads for a loader are parsed and deduplicated
type ProcessingOptions struct {
	Dedupe       bool   `json:"dedupe"`
	CSVDelimiter string `json:"csvDelimiter,omitempty"` // single character, default ","
	JSONDataPath string `json:"jsonDataPath,omitempty"` // dot path to the record array
}

// LoaderSchedule configures automatic runs; IntervalSecs 0 means manual only
type LoaderSchedule struct {
	IntervalSecs int `json:"intervalSecs"`
}

// LoaderStats are cumulative across all runs of a loader
type LoaderStats struct {
	TotalRuns      int        `json:"totalRuns"`
	TotalFound     int        `json:"totalFound"`
	TotalProcessed int        `json:"totalProcessed"`
	TotalFailed    int        `json:"totalFailed"`
	TotalSkipped   int        `json:"totalSkipped"`
	LastRunAt      *time.Time `json:"lastRunAt,omitempty"`
}

// VolumeLoader is a configured external data source
type VolumeLoader struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Type       LoaderType        `json:"type"`
	PipelineID string            `json:"pipelineId"`
	Mappings   []FieldMapping    `json:"mappings"`
	Defaults   LoaderDefaults    `json:"defaults"`
	Options    ProcessingOptions `json:"options"`
	Schedule   LoaderSchedule    `json:"schedule"`
	Status     LoaderStatus      `json:"status"`
	Stats      LoaderStats       `json:"stats"`

	// LOCAL connector settings
	WatchDir   string `json:"watchDir,omitempty"`
	FileGlob   string `json:"fileGlob,omitempty"`
	ArchiveDir string `json:"archiveDir,omitempty"`
}

// WorkItemDraft is a mapped-but-unrouted record produced by the field mapper
type WorkItemDraft struct {
	ExternalID string            `json:"externalId"`
	Title      string            `json:"title"`
	WorkType   string            `json:"workType"`
	Priority   int               `json:"priority"`
	PayloadURL string            `json:"payloadUrl,omitempty"`
	Fields     map[string]string `json:"fields"`   // mapped target fields
	Metadata   map[string]string `json:"metadata"` // unmapped source columns, verbatim
}

// StagedRecord is one draft awaiting a run, with its source row for diagnostics
type StagedRecord struct {
	Row   int           `json:"row"`
	Draft WorkItemDraft `json:"draft"`
}

// StagedBatch holds uploaded-but-not-yet-routed records for one loader
type StagedBatch struct {
	UploadID   string         `json:"uploadId"`
	LoaderID   string         `json:"loaderId"`
	FileName   string         `json:"fileName,omitempty"`
	UploadedAt time.Time      `json:"uploadedAt"`
	Records    []StagedRecord `json:"records"`
}

// RunStatus is the overall outcome of one loader execution
type RunStatus string

const (
	RunRunning   RunStatus = "RUNNING"
	RunCompleted RunStatus = "COMPLETED"
	RunPartial   RunStatus = "PARTIAL"
	RunFailed    RunStatus = "FAILED"
)

// RecordError is a per-row failure captured in a run's error log
type RecordError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// VolumeLoaderRun is the report of one loader execution
type VolumeLoaderRun struct {
	ID               string         `json:"id"`
	LoaderID         string         `json:"loaderId"`
	Status           RunStatus      `json:"status"`
	RecordsFound     int            `json:"recordsFound"`
	RecordsProcessed int            `json:"recordsProcessed"`
	RecordsFailed    int            `json:"recordsFailed"`
	RecordsSkipped   int            `json:"recordsSkipped"`
	RecordsRouted    int            `json:"recordsRouted"`
	RecordsUnrouted  int            `json:"recordsUnrouted"`
	Errors           []RecordError  `json:"errors,omitempty"`
	RoutingSummary   map[string]int `json:"routingSummary,omitempty"` // rule name -> count
	StartedAt        time.Time      `json:"startedAt"`
	FinishedAt       *time.Time     `json:"finishedAt,omitempty"`
}

// UploadResult is returned by the upload endpoint; upload never routes
type UploadResult struct {
	UploadID       string        `json:"uploadId"`
	LoaderID       string        `json:"loaderId"`
	RecordsFound   int           `json:"recordsFound"`
	RecordsStaged  int           `json:"recordsStaged"`
	RecordsFailed  int           `json:"recordsFailed"`
	RecordsSkipped int           `json:"recordsSkipped"`
	DryRun         bool          `json:"dryRun,omitempty"`
	Errors         []RecordError `json:"errors,omitempty"`
}
