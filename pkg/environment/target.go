package environment

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/nais/promote/pkg/failure"
)

// Target identifies one environment instance that a version is deployed to.
type Target struct {
	Environment string
	App         string
	ClusterName string
	Namespace   string
	Project     string
	Region      string
	Platform    string

	Domain        string
	IngressIPName string

	Repository string
	Version    string

	Memory   string
	CPU      string
	CPULimit string
	Replicas int
	Port     int

	HealthPath           string
	TestCommand          string
	AllowUnauthenticated bool

	// SecretNames is ordered; the values are looked up in Secrets.
	SecretNames []string
	Secrets     map[string]string
}

// BaseName is the cluster and namespace name of an application in an environment.
func BaseName(app, environment string) string {
	if len(environment) == 0 {
		return app
	}
	return app + "-" + environment
}

func NewTarget(environment string, settings *Settings, version string, secrets map[string]string) (Target, error) {
	base := BaseName(settings.Name, environment)
	if msgs := validation.IsDNS1123Label(base); len(msgs) > 0 {
		return Target{}, failure.Errorf(failure.Configuration, "derived name %q: %s", base, strings.Join(msgs, ", "))
	}

	target := Target{
		Environment:          environment,
		App:                  settings.Name,
		ClusterName:          base,
		Namespace:            base,
		Project:              settings.Project,
		Region:               settings.Region,
		Platform:             settings.Platform,
		Domain:               settings.Domain,
		IngressIPName:        settings.IngressIPName,
		Repository:           strings.TrimSuffix(settings.DockerRepo, "/"),
		Version:              version,
		Memory:               settings.Memory,
		CPU:                  settings.CPU,
		CPULimit:             settings.CPULimit,
		Replicas:             settings.Replicas,
		Port:                 settings.Port,
		HealthPath:           settings.HealthPath,
		TestCommand:          settings.TestCommand,
		AllowUnauthenticated: settings.AllowUnauthenticated,
		SecretNames:          append([]string(nil), settings.Secrets...),
		Secrets:              make(map[string]string, len(settings.Secrets)),
	}

	for _, name := range settings.Secrets {
		value, ok := secrets[name]
		if !ok {
			return Target{}, failure.Errorf(failure.Configuration, "secret variable %q is required by environment %q but has no value", name, environment)
		}
		target.Secrets[name] = value
	}

	if len(version) > 0 {
		if msgs := validation.IsValidLabelValue(version); len(msgs) > 0 {
			return Target{}, failure.Errorf(failure.Configuration, "version %q: %s", version, strings.Join(msgs, ", "))
		}
	}

	return target, nil
}

// Image returns the fully qualified image reference of the version under deployment.
func (t Target) Image() string {
	return fmt.Sprintf("%s/%s:%s", t.Repository, t.App, t.Version)
}

func (t Target) HasDomain() bool {
	return len(t.Domain) > 0
}

// Name is a human readable identifier used in logs and errors.
func (t Target) Name() string {
	if len(t.Environment) == 0 {
		return t.App
	}
	return t.Environment
}

// SecretValues returns the secret values in the order of SecretNames.
func (t Target) SecretValues() []string {
	values := make([]string, 0, len(t.SecretNames))
	for _, name := range t.SecretNames {
		values = append(values, t.Secrets[name])
	}
	return values
}
