package domain

// SourceType selects where a job's input dataset comes from.
type SourceType string

const (
	SourceTypeAPI  SourceType = "api"
	SourceTypeFile SourceType = "file"
)

// FileFormat selects the parser for file sources.
type FileFormat string

const (
	FileFormatCSV  FileFormat = "csv"
	FileFormatJSON FileFormat = "json"
)

// Source is a tagged variant: API sources carry a URL and no format,
// file sources carry a path and a mandatory format.
type Source struct {
	Type     SourceType
	Location string     // URL for api, path for file
	Format   FileFormat // file sources only
}
