package config

import (
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v2"

	"gitlab.com/gitlab-org/registry-tag-purger/azure"
	"gitlab.com/gitlab-org/registry-tag-purger/storage"
)

const (
	ExecutorRegistry = "registry"
	ExecutorACR      = "acr"

	defaultTimeoutInSeconds = 600
	loginServerSuffix       = ".azurecr.io"
)

type Registry struct {
	Environment       string  `yaml:"environment"`
	TenantID          string  `yaml:"tenantid"`
	MIClientID        string  `yaml:"miclientid"`
	SPClientID        string  `yaml:"spclientid"`
	SPClientSecret    string  `yaml:"spclientsecret"`
	SubscriptionID    string  `yaml:"subscriptionid"`
	ResourceGroupName string  `yaml:"resourcegroupname"`
	RegistryName      string  `yaml:"registryname"`
	LoginServer       string  `yaml:"loginserver"`
	Insecure          bool    `yaml:"insecure"`
	QPS               float64 `yaml:"qps"`
}

type Delete struct {
	Repository       string   `yaml:"repository"`
	Tags             []string `yaml:"tags"`
	DryRun           bool     `yaml:"dryrun"`
	TimeoutInSeconds int      `yaml:"timeoutinseconds"`
}

type Purge struct {
	Filter           string `yaml:"filter"`
	Ago              string `yaml:"ago"`
	Untagged         bool   `yaml:"untagged"`
	DryRun           bool   `yaml:"dryrun"`
	TimeoutInSeconds int    `yaml:"timeoutinseconds"`
}

type Config struct {
	Version  string         `yaml:"version"`
	Executor string         `yaml:"executor"`
	Registry Registry       `yaml:"registry"`
	Delete   Delete         `yaml:"delete"`
	Purge    Purge          `yaml:"purge"`
	Storage  storage.Config `yaml:"storage"`
}

var environmentOverrides = map[string]func(c *Config) *string{
	"REGISTRY_TENANTID":       func(c *Config) *string { return &c.Registry.TenantID },
	"REGISTRY_MICLIENTID":     func(c *Config) *string { return &c.Registry.MIClientID },
	"REGISTRY_SPCLIENTID":     func(c *Config) *string { return &c.Registry.SPClientID },
	"REGISTRY_SPCLIENTSECRET": func(c *Config) *string { return &c.Registry.SPClientSecret },
	"REGISTRY_SUBSCRIPTIONID": func(c *Config) *string { return &c.Registry.SubscriptionID },
}

func Load(configFile string) (*Config, error) {
	data, err := ioutil.ReadFile(configFile)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	config := &Config{
		Executor: ExecutorRegistry,
		Delete:   Delete{TimeoutInSeconds: defaultTimeoutInSeconds},
		Purge:    Purge{TimeoutInSeconds: defaultTimeoutInSeconds},
	}

	err := yaml.UnmarshalStrict(data, config)
	if err != nil {
		return nil, err
	}

	if config.Version != "0.1" {
		return nil, errors.New("only 0.1 version is supported")
	}

	for name, field := range environmentOverrides {
		if value, ok := os.LookupEnv(name); ok {
			*field(config) = value
		}
	}

	return config, nil
}

// LoginServerName is the registry host, derived from the registry name when
// not configured.
func (r *Registry) LoginServerName() string {
	if r.LoginServer != "" {
		return r.LoginServer
	}
	return strings.ToLower(r.RegistryName) + loginServerSuffix
}

func (r *Registry) BaseURL() string {
	server := r.LoginServerName()
	if strings.Contains(server, "://") {
		return server
	}
	if r.Insecure {
		return "http://" + server
	}
	return "https://" + server
}

func (r *Registry) Credentials() azure.Credentials {
	return azure.Credentials{
		Environment:    r.Environment,
		TenantID:       r.TenantID,
		MIClientID:     r.MIClientID,
		SPClientID:     r.SPClientID,
		SPClientSecret: r.SPClientSecret,
	}
}

// Validate checks the registry settings; management settings are only
// required when tasks are scheduled through the Azure API.
func (r *Registry) Validate(management bool) error {
	var result *multierror.Error

	if r.RegistryName == "" && r.LoginServer == "" {
		result = multierror.Append(result, errors.New("registry: registryname or loginserver is required"))
	}
	if r.QPS < 0 {
		result = multierror.Append(result, errors.New("registry: qps cannot be negative"))
	}

	if !management {
		return result.ErrorOrNil()
	}

	if r.TenantID == "" {
		result = multierror.Append(result, errors.New("registry: tenantid is required"))
	}
	if r.MIClientID == "" && (r.SPClientID == "" || r.SPClientSecret == "") {
		result = multierror.Append(result, errors.New("registry: missing miclientid or spclientid/spclientsecret"))
	}
	if r.SubscriptionID == "" {
		result = multierror.Append(result, errors.New("registry: subscriptionid is required"))
	}
	if r.ResourceGroupName == "" {
		result = multierror.Append(result, errors.New("registry: resourcegroupname is required"))
	}
	if r.RegistryName == "" {
		result = multierror.Append(result, errors.New("registry: registryname is required"))
	}

	return result.ErrorOrNil()
}

func (d *Delete) Timeout() time.Duration {
	return time.Duration(d.TimeoutInSeconds) * time.Second
}

func (d *Delete) Validate() error {
	var result *multierror.Error

	if d.Repository == "" {
		result = multierror.Append(result, errors.New("delete: repository is required"))
	}
	if len(d.Tags) == 0 {
		result = multierror.Append(result, errors.New("delete: at least one tag is required"))
	}
	for _, tag := range d.Tags {
		if strings.TrimSpace(tag) == "" {
			result = multierror.Append(result, errors.New("delete: empty tag name"))
			break
		}
	}
	if d.TimeoutInSeconds < 1 {
		result = multierror.Append(result, fmt.Errorf("delete: timeoutinseconds must be positive, was %d", d.TimeoutInSeconds))
	}

	return result.ErrorOrNil()
}

func (p *Purge) Timeout() time.Duration {
	return time.Duration(p.TimeoutInSeconds) * time.Second
}

func (p *Purge) Validate() error {
	var result *multierror.Error

	if strings.TrimSpace(p.Filter) == "" {
		result = multierror.Append(result, errors.New("purge: filter is required"))
	}
	if strings.TrimSpace(p.Ago) == "" {
		result = multierror.Append(result, errors.New("purge: ago is required"))
	}
	if p.TimeoutInSeconds < 1 {
		result = multierror.Append(result, fmt.Errorf("purge: timeoutinseconds must be positive, was %d", p.TimeoutInSeconds))
	}

	return result.ErrorOrNil()
}

// ValidateDelete checks everything the delete and plan commands need.
func (c *Config) ValidateDelete() error {
	var result *multierror.Error

	switch c.Executor {
	case ExecutorRegistry, ExecutorACR:
	default:
		result = multierror.Append(result, fmt.Errorf("unsupported executor: %q", c.Executor))
	}

	result = multierror.Append(result, c.Registry.Validate(c.Executor == ExecutorACR))
	// Tags and manifests are read with the service principal even when
	// task runs authenticate with a managed identity.
	if c.Executor == ExecutorACR && (c.Registry.SPClientID == "" || c.Registry.SPClientSecret == "") {
		result = multierror.Append(result, errors.New("registry: spclientid and spclientsecret are required to read the registry"))
	}
	result = multierror.Append(result, c.Delete.Validate())
	result = multierror.Append(result, c.Storage.Validate())

	return result.ErrorOrNil()
}

func (c *Config) ValidatePurge() error {
	var result *multierror.Error

	result = multierror.Append(result, c.Registry.Validate(true))
	result = multierror.Append(result, c.Purge.Validate())
	result = multierror.Append(result, c.Storage.Validate())

	return result.ErrorOrNil()
}
