package config

// Config collects the per-run options given on the command line.
type Config struct {
	InputPath    string
	SettingsPath string
	DPI          int

	FPS     int
	Onion   bool
	Loop    bool
	Play    bool
	Workers int

	ExportFormat string // gif, sprite or mp4
	OutputPath   string
	Width        int // export cell size, 0 keeps the canvas size
	Height       int
	Background   string
	VideoEncoder string
	Quality      int

	MQTTURL   string
	MQTTTopic string

	ShowStats    bool
	BuildVersion string
}

// ExportParams describes one export run.
type ExportParams struct {
	Width, Height int
	FPS           int
	Workers       int
	Background    string
	VideoEncoder  string
	Quality       int
}

// ExportParams derives the export settings from the run options.
func (c Config) ExportParams() ExportParams {
	return ExportParams{
		Width:        c.Width,
		Height:       c.Height,
		FPS:          c.FPS,
		Workers:      c.Workers,
		Background:   c.Background,
		VideoEncoder: c.VideoEncoder,
		Quality:      c.Quality,
	}
}
