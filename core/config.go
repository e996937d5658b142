package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Debug    bool
	TestMode bool
	Env      string // DEV (default), TEST, QA, PROD
	AppName  string
	WorkDir  string

	SecretKey          string
	JWTExpirationDelta time.Duration

	Server struct {
		Host            string
		Port            int
		ShutdownTimeout time.Duration
	}

	Database struct {
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          int
		DisableTLS    bool
	}

	// LMS holds the host platform's internal API access parameters.
	LMS struct {
		BaseURL  string
		APIToken string
	}

	// Ed2go holds the partner API access parameters and the global
	// feature switches driving the integration.
	Ed2go struct {
		APIKey                      string
		RegistrationServiceURL      string
		CompletionReportURL         string
		SSOLoginURL                 string
		SessionInactivityThreshold  time.Duration
		CompletionReportingEnabled  bool
		RedirectAnonymousEnabled    bool
		ReportSubmissionSchedule    string // cron expression
		SessionExpirySchedule       string // cron expression
		ReportFailureAlertRecipient string
	}

	DefaultFromEmail string
	SendgridAPIKey   string
	RollbarToken     string
	Build            string
}

func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) DatabaseAddress() string {
	return fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port)
}

// NewConfig loads the app configuration from the environment; an optional
// config/.env.<env> file is loaded first if it exists.
func NewConfig() (*Config, error) {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("appName", "ed2go-integration")
	v.SetDefault("secretKey", "+2c^ymdr5s@05!xdw0e(h7p&0vnn7=1bq8*2ysw#5p&v9)fn23")
	v.SetDefault("jwtExpirationDelta", 24*time.Hour)
	v.SetDefault("serverHost", "")
	v.SetDefault("serverPort", 8000)
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("databaseEngine", "postgres")
	v.SetDefault("databaseName", "ed2go")
	v.SetDefault("databaseUser", "")
	v.SetDefault("databasePassword", "")
	v.SetDefault("databaseAdminUser", "")
	v.SetDefault("databaseAdminPassword", "")
	v.SetDefault("databaseHost", "localhost")
	v.SetDefault("databasePort", 5432)
	v.SetDefault("databaseDisableTLS", false)
	v.SetDefault("lmsBaseURL", "http://localhost:8080")
	v.SetDefault("lmsAPIToken", "")
	v.SetDefault("ed2goAPIKey", "")
	v.SetDefault("ed2goRegistrationServiceURL", "https://api.ed2go.com/sandbox/api/RegistrationService.asmx")
	v.SetDefault("ed2goCompletionReportURL", "https://api.ed2go.com/sandbox/api/CompletionReportService.asmx")
	v.SetDefault("ed2goSSOLoginURL", "")
	v.SetDefault("ed2goSessionInactivityThreshold", 30*time.Minute)
	v.SetDefault("ed2goCompletionReportingEnabled", false)
	v.SetDefault("ed2goRedirectAnonymousEnabled", false)
	v.SetDefault("ed2goReportSubmissionSchedule", "@every 1h")
	v.SetDefault("ed2goSessionExpirySchedule", "@every 15m")
	v.SetDefault("ed2goReportFailureAlertRecipient", "")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("sendgridAPIKey", "")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("build", "dev")

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	v.SetEnvPrefix(env)

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, fmt.Errorf("config: loading %s: %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: %v", err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Debug:              v.GetBool("debug"),
		TestMode:           env == "TEST",
		Env:                env,
		AppName:            v.GetString("appName"),
		WorkDir:            wd,
		SecretKey:          v.GetString("secretKey"),
		JWTExpirationDelta: v.GetDuration("jwtExpirationDelta"),
		DefaultFromEmail:   v.GetString("defaultFromEmail"),
		SendgridAPIKey:     v.GetString("sendgridAPIKey"),
		RollbarToken:       v.GetString("rollbarToken"),
		Build:              v.GetString("build"),
	}
	conf.Server.Host = v.GetString("serverHost")
	conf.Server.Port = v.GetInt("serverPort")
	conf.Server.ShutdownTimeout = v.GetDuration("serverShutdownTimeout")
	conf.Database.Engine = v.GetString("databaseEngine")
	conf.Database.Name = v.GetString("databaseName")
	conf.Database.User = v.GetString("databaseUser")
	conf.Database.Password = v.GetString("databasePassword")
	conf.Database.AdminUser = v.GetString("databaseAdminUser")
	conf.Database.AdminPassword = v.GetString("databaseAdminPassword")
	conf.Database.Host = v.GetString("databaseHost")
	conf.Database.Port = v.GetInt("databasePort")
	conf.Database.DisableTLS = v.GetBool("databaseDisableTLS")
	conf.LMS.BaseURL = v.GetString("lmsBaseURL")
	conf.LMS.APIToken = v.GetString("lmsAPIToken")
	conf.Ed2go.APIKey = v.GetString("ed2goAPIKey")
	conf.Ed2go.RegistrationServiceURL = v.GetString("ed2goRegistrationServiceURL")
	conf.Ed2go.CompletionReportURL = v.GetString("ed2goCompletionReportURL")
	conf.Ed2go.SSOLoginURL = v.GetString("ed2goSSOLoginURL")
	conf.Ed2go.SessionInactivityThreshold = v.GetDuration("ed2goSessionInactivityThreshold")
	conf.Ed2go.CompletionReportingEnabled = v.GetBool("ed2goCompletionReportingEnabled")
	conf.Ed2go.RedirectAnonymousEnabled = v.GetBool("ed2goRedirectAnonymousEnabled")
	conf.Ed2go.ReportSubmissionSchedule = v.GetString("ed2goReportSubmissionSchedule")
	conf.Ed2go.SessionExpirySchedule = v.GetString("ed2goSessionExpirySchedule")
	conf.Ed2go.ReportFailureAlertRecipient = v.GetString("ed2goReportFailureAlertRecipient")
	return conf, nil
}
