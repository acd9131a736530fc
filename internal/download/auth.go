package download

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	// EarthdataHost is the NASA Earthdata login host the burst extractor
	// authenticates against.
	EarthdataHost = "urs.earthdata.nasa.gov"

	tokenEnvVar    = "EARTHDATA_TOKEN"
	usernameEnvVar = "EARTHDATA_USERNAME"
	passwordEnvVar = "EARTHDATA_PASSWORD"
)

// Credentials authenticate requests to Earthdata-protected URLs.
type Credentials struct {
	// Source records where the credentials came from: token, netrc, or
	// env.
	Source   string
	Token    string
	Username string
	Password string
}

// Apply attaches the credentials to an outgoing request.
func (c *Credentials) Apply(req *http.Request) {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
		return
	}
	req.SetBasicAuth(c.Username, c.Password)
}

// FindCredentials locates NASA Earthdata credentials, in order of
// preference: the EARTHDATA_TOKEN environment variable, the netrc file,
// then the EARTHDATA_USERNAME and EARTHDATA_PASSWORD environment variables.
func FindCredentials() (*Credentials, error) {
	if token := os.Getenv(tokenEnvVar); token != "" {
		return &Credentials{Source: "token", Token: token}, nil
	}

	if username, password, err := netrcCredentials(EarthdataHost); err != nil {
		return nil, err
	} else if username != "" {
		return &Credentials{Source: "netrc", Username: username, Password: password}, nil
	}

	username, password := os.Getenv(usernameEnvVar), os.Getenv(passwordEnvVar)
	if username != "" && password != "" {
		return &Credentials{Source: "env", Username: username, Password: password}, nil
	}

	return nil, fmt.Errorf("no NASA Earthdata credentials found: provide them via your netrc file, "+
		"the %s and %s environment variables, or an EDL token via %s",
		usernameEnvVar, passwordEnvVar, tokenEnvVar)
}

func netrcPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating netrc: %w", err)
	}
	name := ".netrc"
	if runtime.GOOS == "windows" {
		name = "_netrc"
	}
	return filepath.Join(home, name), nil
}

// netrcCredentials scans the netrc file for the machine entry of host.
// Both single-line and multi-line netrc layouts are accepted.
func netrcCredentials(host string) (username, password string, err error) {
	path, err := netrcPath()
	if err != nil {
		return "", "", err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", nil
		}
		return "", "", fmt.Errorf("reading netrc: %w", err)
	}
	defer f.Close()

	var tokens []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tokens = append(tokens, strings.Fields(scanner.Text())...)
	}
	if err := scanner.Err(); err != nil {
		return "", "", fmt.Errorf("reading netrc: %w", err)
	}

	inMachine := false
	for i := 0; i < len(tokens)-1; i++ {
		switch tokens[i] {
		case "machine":
			inMachine = tokens[i+1] == host
			i++
		case "default":
			inMachine = false
		case "login":
			if inMachine {
				username = tokens[i+1]
			}
			i++
		case "password":
			if inMachine {
				password = tokens[i+1]
			}
			i++
		}
	}
	if username != "" && password != "" {
		return username, password, nil
	}
	return "", "", nil
}
