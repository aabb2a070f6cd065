package settings

import (
	"bufio"
	"fmt"
	"log"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"
)

var Settings *AppSettings

func NewSettings() *AppSettings {
	settings := AppSettings{
		SessionExpires: time.Duration(30 * 24 * time.Hour),
		Domain:         getEnvOrDefault("SIMPLECD_DOMAIN", "localhost"),
		Port:           getEnvOrDefault("SIMPLECD_PORT", ":8080"),
		SQLiteDatabase: getEnvOrDefault("SIMPLECD_DB_PATH", "file:.///db.sqlite"),
		SSHTarget:      getEnvOrDefault("DEPLOY_SSH_TARGET", "ubuntu@127.0.0.1"),
		SSHPort:        getEnvOrDefault("DEPLOY_SSH_PORT", "22"),
		RemotePath:     getEnvOrDefault("DEPLOY_REMOTE_PATH", "/home/ubuntu/app"),
		AppRoot:        getEnvOrDefault("DEPLOY_APP_ROOT", "."),
	}
	if !strings.HasPrefix(settings.Port, ":") {
		settings.Port = ":" + settings.Port
	}
	return &settings
}

func getEnvOrDefault(key, defaultValue string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	return value
}

type AppSettings struct {
	SQLiteDatabase string
	Domain         string
	Port           string
	SessionExpires time.Duration

	// deployment target
	SSHTarget  string
	SSHPort    string
	RemotePath string
	AppRoot    string
}

func (as *AppSettings) BaseURL() string {
	if as.Domain == "localhost" {
		return fmt.Sprintf("http://%s%s", as.Domain, as.Port)
	} else {
		return fmt.Sprintf("https://%s", as.Domain)
	}
}

// SSHUser splits the user@host target into its user part.
func (as *AppSettings) SSHUser() string {
	if i := strings.Index(as.SSHTarget, "@"); i >= 0 {
		return as.SSHTarget[:i]
	}
	return as.SSHTarget
}

// SSHHost splits the user@host target into its host part, with the
// configured port appended.
func (as *AppSettings) SSHHost() string {
	host := as.SSHTarget
	if i := strings.Index(host, "@"); i >= 0 {
		host = host[i+1:]
	}
	if !strings.Contains(host, ":") {
		host += ":" + as.SSHPort
	}
	return host
}

// DockerHost is injected into local task environments so docker
// commands run against the deployment target's daemon.
func (as *AppSettings) DockerHost() string {
	return fmt.Sprintf("ssh://%s:%s", as.SSHTarget, as.SSHPort)
}

func (as *AppSettings) SQLiteDbString(readonly bool) string {
	params := make(url.Values)
	params.Add("_journal_mode", "WAL")
	params.Add("_busy_timeout", "5000")
	params.Add("_synchronous", "NORMAL")
	params.Add("_cache_size", "-20000")
	params.Add("_foreign_keys", "ON")
	if readonly {
		params.Add("mode", "ro")
	} else {
		params.Add("_txlock", "IMMEDIATE")
		params.Add("mode", "rwc")
	}

	return as.SQLiteDatabase + "?" + params.Encode()
}

func ReadDotenv(path string) {
	re := regexp.MustCompile(`^[^0-9][A-Z0-9_]+=.+$`)
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) > 0 && line[0] != '#' && re.Match(line) {
			split := strings.Split(string(line), "=")
			name := strings.TrimSpace(split[0])
			value := strings.TrimSpace(split[1])
			value = strings.Trim(value, `"`)
			os.Setenv(name, value)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Println("err reading dotenv:", err)
	}
}
