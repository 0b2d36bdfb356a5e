package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// AnkiConfig controls card export. Any of the three field names may be left
// empty to disable updating that field on the target note.
type AnkiConfig struct {
	ImageFormat          string `json:"imageFormat"`
	AudioFormat          string `json:"audioFormat"`
	ImageWidth           int    `json:"imageWidth"`  // <1 = auto
	ImageHeight          int    `json:"imageHeight"` // <1 = auto
	ConnectURL           string `json:"connectUrl"`
	SentenceMeaningField string `json:"sentenceMeaningField"`
	SentenceAudioField   string `json:"sentenceAudioField"`
	PictureField         string `json:"pictureField"`
}

type Config struct {
	Browser             string  `json:"browser"` // "default" = system default
	ReuseLastTab        bool    `json:"reuseLastTab"`
	ReuseLastTabTimeout float64 `json:"reuseLastTabTimeout"` // seconds

	Host    string `json:"host"`
	Port    int    `json:"port"`
	PortMax int    `json:"portMax"`

	SkipEmptySubs         bool `json:"skipEmptySubs"`
	SubtitleExportTimeout int  `json:"subtitleExportTimeout"` // seconds, 0 = unbounded
	ResyncTimeout         int  `json:"resyncTimeout"`         // seconds, 0 = unbounded

	FFmpegPath    string `json:"ffmpegPath"`
	FFsubsyncPath string `json:"ffsubsyncPath"`
	MpvPath       string `json:"mpvPath"`

	Anki AnkiConfig `json:"anki"`

	DevMode  bool   `json:"devMode"`
	LogLevel string `json:"logLevel"`
	Metrics  bool   `json:"metrics"`
}

func Defaults() Config {
	return Config{
		Browser:             "default",
		ReuseLastTab:        true,
		ReuseLastTabTimeout: 1.5,
		Host:                "localhost",
		Port:                8080,
		PortMax:             65535,
		SkipEmptySubs:       true,
		Anki: AnkiConfig{
			ImageFormat: "png",
			AudioFormat: "mp3",
			ImageWidth:  -1,
			ImageHeight: -1,
			ConnectURL:  "http://127.0.0.1:8765",
		},
		LogLevel: "info",
		Metrics:  true,
	}
}

// Load reads the config at path on top of Defaults. A missing file is not
// an error; the caller gets the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Port < 0 || c.Port > c.PortMax {
		return fmt.Errorf("port %d must be between 0 and %d", c.Port, c.PortMax)
	}
	if c.ReuseLastTabTimeout < 0 {
		return errors.New("reuseLastTabTimeout cannot be negative")
	}
	return nil
}
