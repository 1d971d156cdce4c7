// Command deploycheck validates the deployment manifest and the
// configuration template against the rules the processes assume at
// runtime: every recognized environment variable appears in the template,
// the web service binds the platform-assigned port, the worker runs a
// single task slot, and the selected payment provider has its credential
// set declared before deploy.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/daracheol/voxscribe/internal/config"
	"github.com/daracheol/voxscribe/internal/task"
)

// Manifest mirrors the deployment manifest structure, limited to the
// fields the checks inspect.
type Manifest struct {
	Services []Service `yaml:"services"`
}

// Service is one deployment unit entry.
type Service struct {
	Type            string    `yaml:"type"`
	Name            string    `yaml:"name"`
	Env             string    `yaml:"env"`
	Plan            string    `yaml:"plan"`
	BuildCommand    string    `yaml:"buildCommand"`
	StartCommand    string    `yaml:"startCommand"`
	HealthCheckPath string    `yaml:"healthCheckPath"`
	EnvVars         []EnvVar  `yaml:"envVars"`
	IPAllowList     []IPEntry `yaml:"ipAllowList"`
}

// EnvVar is one environment variable binding of a service. Exactly one of
// Value, Sync, GenerateValue, or FromService is populated per entry.
type EnvVar struct {
	Key           string       `yaml:"key"`
	Value         string       `yaml:"value"`
	Sync          *bool        `yaml:"sync"`
	GenerateValue bool         `yaml:"generateValue"`
	FromService   *FromService `yaml:"fromService"`
}

// FromService resolves a variable from another service in the manifest.
type FromService struct {
	Type     string `yaml:"type"`
	Name     string `yaml:"name"`
	Property string `yaml:"property"`
}

// IPEntry is one cache allow-list rule.
type IPEntry struct {
	Source      string `yaml:"source"`
	Description string `yaml:"description"`
}

func main() {
	manifestPath := flag.String("manifest", "render.yaml", "path to the deployment manifest")
	templatePath := flag.String("template", ".env.example", "path to the configuration template")
	flag.Parse()

	problems, err := Check(*manifestPath, *templatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "deploycheck: %v\n", err)
		os.Exit(1)
	}

	if len(problems) > 0 {
		for _, p := range problems {
			fmt.Fprintf(os.Stderr, "deploycheck: %s\n", p)
		}
		os.Exit(1)
	}

	fmt.Println("deploycheck: OK")
}

// Check runs every validation against the manifest and template on disk
// and returns the list of rule violations. An error means a file could
// not be read or parsed at all.
func Check(manifestPath, templatePath string) ([]string, error) {
	manifestBytes, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var manifest Manifest
	if err := yaml.Unmarshal(manifestBytes, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	templateFile, err := os.Open(templatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	defer func() { _ = templateFile.Close() }()

	template, err := ParseEnvTemplate(templateFile)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	return Validate(&manifest, template), nil
}

// ParseEnvTemplate reads KEY=VALUE lines from a dotenv-style template,
// skipping blank lines and comments.
func ParseEnvTemplate(r io.Reader) (map[string]string, error) {
	vars := make(map[string]string)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("line %d: not a KEY=VALUE entry: %q", lineNo, line)
		}
		vars[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return vars, scanner.Err()
}

// Validate applies every deployment rule and returns the violations found.
func Validate(manifest *Manifest, template map[string]string) []string {
	var problems []string

	problems = append(problems, checkTemplateComplete(template)...)

	web := findService(manifest, "web")
	worker := findService(manifest, "worker")
	cache := findService(manifest, "redis")

	if web == nil {
		problems = append(problems, "manifest declares no web service")
	} else {
		problems = append(problems, checkWebService(web)...)
		problems = append(problems, checkPaymentCredentials(web, template)...)
	}

	if worker == nil {
		problems = append(problems, "manifest declares no worker service")
	} else {
		problems = append(problems, checkWorkerService(worker)...)
	}

	if cache == nil {
		problems = append(problems, "manifest declares no redis service")
	} else if len(cache.IPAllowList) == 0 {
		problems = append(problems, fmt.Sprintf("redis service %q has no ipAllowList", cache.Name))
	}

	return problems
}

// checkTemplateComplete verifies every environment variable the
// application recognizes appears in the template.
func checkTemplateComplete(template map[string]string) []string {
	var problems []string
	for _, name := range config.EnvVarNames() {
		if _, ok := template[name]; !ok {
			problems = append(problems, fmt.Sprintf("template is missing %s", name))
		}
	}
	return problems
}

// hardcodedPort matches a literal port in a start command, either a bind
// address like :5000 or a port flag.
var hardcodedPort = regexp.MustCompile(`(:\d{2,5}\b|--?port[= ]\d+)`)

// checkWebService enforces that the web process binds the
// platform-assigned PORT variable rather than a hardcoded port.
func checkWebService(svc *Service) []string {
	var problems []string
	if hardcodedPort.MatchString(svc.StartCommand) {
		problems = append(problems, fmt.Sprintf(
			"web service %q hardcodes a port in its start command: %q", svc.Name, svc.StartCommand))
	}
	for _, ev := range svc.EnvVars {
		if ev.Key == "PORT" && ev.Value != "" {
			problems = append(problems, fmt.Sprintf(
				"web service %q pins PORT to %q instead of the platform-assigned value", svc.Name, ev.Value))
		}
	}
	return problems
}

// concurrencyFlag matches any attempt to raise worker parallelism from
// the start command.
var concurrencyFlag = regexp.MustCompile(`--?concurrency[= ]\d+`)

// checkWorkerService enforces the single-slot execution model: the
// compiled-in concurrency must be one and the start command must not
// override it.
func checkWorkerService(svc *Service) []string {
	var problems []string
	if task.WorkerConcurrency != 1 {
		problems = append(problems, fmt.Sprintf(
			"worker concurrency is %d, must be exactly 1", task.WorkerConcurrency))
	}
	if m := concurrencyFlag.FindString(svc.StartCommand); m != "" {
		problems = append(problems, fmt.Sprintf(
			"worker service %q overrides concurrency in its start command: %q", svc.Name, m))
	}
	return problems
}

// paymentCredentialKeys maps each payment method to the variables its
// provider integration requires.
var paymentCredentialKeys = map[string][]string{
	"paypal":    {"PAYPAL_CLIENT_ID", "PAYPAL_CLIENT_SECRET", "PAYPAL_WEBHOOK_ID"},
	"2checkout": {"2CO_MERCHANT_CODE", "2CO_SECRET_KEY"},
	"crypto":    {"COINPAYMENTS_MERCHANT_ID", "COINPAYMENTS_IPN_SECRET"},
}

// checkPaymentCredentials verifies the selected payment method has its
// full credential set declared on the web service, so a partially
// configured provider is caught before deploy instead of at startup.
func checkPaymentCredentials(web *Service, template map[string]string) []string {
	method := ""
	declared := make(map[string]bool, len(web.EnvVars))
	for _, ev := range web.EnvVars {
		declared[ev.Key] = true
		if ev.Key == "PAYMENT_METHOD" {
			method = ev.Value
		}
	}
	if method == "" {
		method = template["PAYMENT_METHOD"]
	}

	keys, ok := paymentCredentialKeys[method]
	if !ok {
		return []string{fmt.Sprintf("unrecognized payment method %q", method)}
	}

	var problems []string
	for _, key := range keys {
		if !declared[key] {
			problems = append(problems, fmt.Sprintf(
				"payment method %q requires %s on the web service", method, key))
		}
	}
	return problems
}

func findService(manifest *Manifest, serviceType string) *Service {
	for i := range manifest.Services {
		if manifest.Services[i].Type == serviceType {
			return &manifest.Services[i]
		}
	}
	return nil
}
