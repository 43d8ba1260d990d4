// Package config loads coordinator settings from a JSON file, environment
// variables, and built-in defaults. Environment variables override the JSON
// file; defaults fill only the fields neither of them sets.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// RawSettings mirrors coordinator.json. Every field is a pointer so the
// loader can distinguish "not set" from "set to the zero value" while
// merging file, env, and default layers.
type RawSettings struct {
	SMBUncPath          *string `json:"smb_unc_path"`
	SMBArchiveSubpath   *string `json:"smb_archive_subpath"`
	SMBUsername         *string `json:"smb_username"`
	SMBPassword         *string `json:"smb_password"`
	SMBStabilityMinAgeS *int    `json:"smb_stability_min_age_s"`
	SMBStabilityCheckCount    *int `json:"smb_stability_check_count"`
	SMBStabilityCheckIntervalS *int `json:"smb_stability_check_interval_s"`

	FOIAPIURL *string `json:"foi_api_url"`

	ITMAPIURL        *string `json:"itm_api_url"`
	ITMConsumerType  *string `json:"itm_consumer_type"`
	ITMSourceSystem  *string `json:"itm_source_system"`

	IQubeAPIURL *string `json:"iqube_api_url"`

	DatabaseURL *string `json:"database_url"`

	JWTSecretFile *string `json:"jwt_secret_file"`
	Env           *string `json:"env"`

	ITEnableFailpoints *bool `json:"it_enable_failpoints"`

	FOITimeoutS   *int `json:"foi_timeout_s"`
	ITMTimeoutS   *int `json:"itm_timeout_s"`
	IQubeTimeoutS *int `json:"iqube_timeout_s"`

	HTTPPort              *int `json:"http_port"`
	ProcessConcurrency    *int `json:"process_concurrency"`
	ArchiveTaskConcurrency *int `json:"archive_task_concurrency"`
	ArchiveShutdownWaitS  *int `json:"archive_shutdown_wait_s"`

	IgnoreSuffixes *string `json:"ignore_suffixes"` // comma-separated, appended to the built-in list
}

// Settings is the immutable, fully resolved configuration the composition
// root builds its dependencies from.
type Settings struct {
	SMBUncPath        string
	SMBArchiveSubpath string
	SMBUsername       string
	SMBPassword       string

	SMBStabilityMinAge        time.Duration
	SMBStabilityCheckCount    int
	SMBStabilityCheckInterval time.Duration

	FOIAPIURL string

	ITMAPIURL       string
	ITMConsumerType string
	ITMSourceSystem string

	IQubeAPIURL string

	DatabaseURL string

	JWTSecretFile string
	Env           string

	ITEnableFailpoints bool

	FOITimeout   time.Duration
	ITMTimeout   time.Duration
	IQubeTimeout time.Duration

	HTTPPort               int
	ProcessConcurrency     int
	ArchiveTaskConcurrency int
	ArchiveShutdownWait    time.Duration

	IgnoreSuffixes []string

	// ConfigSource is "json" when coordinator.json was read, otherwise "env"
	// when any environment variable was applied, otherwise "default".
	// SettingPath is the path of the JSON file read, or empty. Both are for
	// startup log lines.
	ConfigSource string
	SettingPath  string
}

// IsLocal reports whether outbound identity-token acquisition should be
// short-circuited with a static dummy token.
func (s Settings) IsLocal() bool {
	return s.Env == "local"
}

// LoadSettings resolves settings from baseDir/coordinator.json, then
// environment variables, then defaults.
func LoadSettings(baseDir string) (Settings, error) {
	settings := &RawSettings{}
	configSource := "default"
	settingPath := ""

	jsonPath := filepath.Join(baseDir, "coordinator.json")
	if data, err := os.ReadFile(jsonPath); err == nil {
		if err := json.Unmarshal(data, settings); err != nil {
			return Settings{}, fmt.Errorf("parse %s: %w", jsonPath, err)
		}
		configSource = "json"
		settingPath = jsonPath
	}

	overrideFromEnv(settings, &configSource)
	applyDefaults(settings)

	return buildSettings(settings, configSource, settingPath), nil
}

func overrideFromEnv(s *RawSettings, configSource *string) {
	setStr := func(field **string, env string) {
		if v := os.Getenv(env); v != "" {
			*field = &v
			if *configSource == "default" {
				*configSource = "env"
			}
		}
	}
	setInt := func(field **int, env string) {
		if v := os.Getenv(env); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*field = &n
				if *configSource == "default" {
					*configSource = "env"
				}
			}
		}
	}
	setBool := func(field **bool, env string) {
		if v := os.Getenv(env); v != "" {
			b := toBool(v)
			*field = &b
			if *configSource == "default" {
				*configSource = "env"
			}
		}
	}

	setStr(&s.SMBUncPath, "SMB_UNC_PATH")
	setStr(&s.SMBArchiveSubpath, "SMB_ARCHIVE_SUBPATH")
	setStr(&s.SMBUsername, "SMB_USERNAME")
	setStr(&s.SMBPassword, "SMB_PASSWORD")
	setInt(&s.SMBStabilityMinAgeS, "SMB_STABILITY_MIN_AGE_S")
	setInt(&s.SMBStabilityCheckCount, "SMB_STABILITY_CHECK_COUNT")
	setInt(&s.SMBStabilityCheckIntervalS, "SMB_STABILITY_CHECK_INTERVAL_S")

	setStr(&s.FOIAPIURL, "FOI_API_URL")

	setStr(&s.ITMAPIURL, "ITM_API_URL")
	setStr(&s.ITMConsumerType, "ITM_CONSUMER_TYPE")
	setStr(&s.ITMSourceSystem, "ITM_SOURCE_SYSTEM")

	setStr(&s.IQubeAPIURL, "IQUBE_API_URL")

	setStr(&s.DatabaseURL, "DATABASE_URL")

	setStr(&s.JWTSecretFile, "JWT_SECRET_FILE")
	setStr(&s.Env, "ENV")

	setBool(&s.ITEnableFailpoints, "IT_ENABLE_FAILPOINTS")

	setInt(&s.FOITimeoutS, "FOI_TIMEOUT_S")
	setInt(&s.ITMTimeoutS, "ITM_TIMEOUT_S")
	setInt(&s.IQubeTimeoutS, "IQUBE_TIMEOUT_S")

	setInt(&s.HTTPPort, "HTTP_PORT")
	setInt(&s.ProcessConcurrency, "PROCESS_CONCURRENCY")
	setInt(&s.ArchiveTaskConcurrency, "ARCHIVE_TASK_CONCURRENCY")
	setInt(&s.ArchiveShutdownWaitS, "ARCHIVE_SHUTDOWN_WAIT_S")

	setStr(&s.IgnoreSuffixes, "IGNORE_SUFFIXES")
}

func applyDefaults(s *RawSettings) {
	strDefault := func(field **string, v string) {
		if *field == nil {
			*field = &v
		}
	}
	intDefault := func(field **int, v int) {
		if *field == nil {
			*field = &v
		}
	}
	boolDefault := func(field **bool, v bool) {
		if *field == nil {
			*field = &v
		}
	}

	strDefault(&s.SMBUncPath, "")
	strDefault(&s.SMBArchiveSubpath, "")
	strDefault(&s.SMBUsername, "")
	strDefault(&s.SMBPassword, "")
	intDefault(&s.SMBStabilityMinAgeS, 0)
	intDefault(&s.SMBStabilityCheckCount, 0)
	intDefault(&s.SMBStabilityCheckIntervalS, 2)

	strDefault(&s.FOIAPIURL, "")

	strDefault(&s.ITMAPIURL, "")
	strDefault(&s.ITMConsumerType, "")
	strDefault(&s.ITMSourceSystem, "")

	strDefault(&s.IQubeAPIURL, "")

	strDefault(&s.DatabaseURL, "")

	strDefault(&s.JWTSecretFile, "")
	strDefault(&s.Env, "production")

	boolDefault(&s.ITEnableFailpoints, false)

	intDefault(&s.FOITimeoutS, 120)
	intDefault(&s.ITMTimeoutS, 30)
	intDefault(&s.IQubeTimeoutS, 5)

	intDefault(&s.HTTPPort, 8080)
	intDefault(&s.ProcessConcurrency, 4)
	intDefault(&s.ArchiveTaskConcurrency, 4)
	intDefault(&s.ArchiveShutdownWaitS, 30)

	strDefault(&s.IgnoreSuffixes, "")
}

func buildSettings(s *RawSettings, configSource, settingPath string) Settings {
	var ignoreSuffixes []string
	if *s.IgnoreSuffixes != "" {
		for _, part := range strings.Split(*s.IgnoreSuffixes, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				ignoreSuffixes = append(ignoreSuffixes, trimmed)
			}
		}
	}

	return Settings{
		SMBUncPath:        *s.SMBUncPath,
		SMBArchiveSubpath: *s.SMBArchiveSubpath,
		SMBUsername:       *s.SMBUsername,
		SMBPassword:       *s.SMBPassword,

		SMBStabilityMinAge:        time.Duration(*s.SMBStabilityMinAgeS) * time.Second,
		SMBStabilityCheckCount:    *s.SMBStabilityCheckCount,
		SMBStabilityCheckInterval: time.Duration(*s.SMBStabilityCheckIntervalS) * time.Second,

		FOIAPIURL: *s.FOIAPIURL,

		ITMAPIURL:       *s.ITMAPIURL,
		ITMConsumerType: *s.ITMConsumerType,
		ITMSourceSystem: *s.ITMSourceSystem,

		IQubeAPIURL: *s.IQubeAPIURL,

		DatabaseURL: *s.DatabaseURL,

		JWTSecretFile: *s.JWTSecretFile,
		Env:           *s.Env,

		ITEnableFailpoints: *s.ITEnableFailpoints,

		FOITimeout:   time.Duration(*s.FOITimeoutS) * time.Second,
		ITMTimeout:   time.Duration(*s.ITMTimeoutS) * time.Second,
		IQubeTimeout: time.Duration(*s.IQubeTimeoutS) * time.Second,

		HTTPPort:               *s.HTTPPort,
		ProcessConcurrency:     *s.ProcessConcurrency,
		ArchiveTaskConcurrency: *s.ArchiveTaskConcurrency,
		ArchiveShutdownWait:    time.Duration(*s.ArchiveShutdownWaitS) * time.Second,

		IgnoreSuffixes: ignoreSuffixes,

		ConfigSource: configSource,
		SettingPath:  settingPath,
	}
}

func toBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}
