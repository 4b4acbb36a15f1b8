package environment

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/nais/promote/pkg/failure"
)

const (
	PlatformGKE        = "gke"
	PlatformKubeconfig = "kubeconfig"
	PlatformCloudRun   = "cloudrun"

	Staging = "staging"
	Live    = "live"

	DefaultMemory     = "512Mi"
	DefaultCPU        = "250m"
	DefaultCPULimit   = "1"
	DefaultReplicas   = 1
	DefaultPort       = 8080
	DefaultHealthPath = "/ping"
)

// Settings is the resolved configuration of one environment.
type Settings struct {
	Name                 string   `json:"name"`
	DockerRepo           string   `json:"docker_repo"`
	Project              string   `json:"project"`
	Region               string   `json:"region"`
	Platform             string   `json:"platform"`
	Memory               string   `json:"memory"`
	CPU                  string   `json:"cpu"`
	CPULimit             string   `json:"cpu_limit"`
	Replicas             int      `json:"replicas"`
	Port                 int      `json:"port"`
	HealthPath           string   `json:"health_path"`
	Domain               string   `json:"domain"`
	IngressIPName        string   `json:"ingress_ip_name"`
	Secrets              []string `json:"secrets"`
	TestCommand          string   `json:"test_command"`
	AllowUnauthenticated bool     `json:"allow_unauthenticated"`
}

func (s *Settings) applyDefaults() {
	if len(s.Platform) == 0 {
		s.Platform = PlatformGKE
	}
	if len(s.Memory) == 0 {
		s.Memory = DefaultMemory
	}
	if len(s.CPU) == 0 {
		s.CPU = DefaultCPU
	}
	if len(s.CPULimit) == 0 {
		s.CPULimit = DefaultCPULimit
	}
	if s.Replicas == 0 {
		s.Replicas = DefaultReplicas
	}
	if s.Port == 0 {
		s.Port = DefaultPort
	}
	if len(s.HealthPath) == 0 {
		s.HealthPath = DefaultHealthPath
	}
}

func (s *Settings) Validate() error {
	errs := make([]string, 0)
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if len(s.Name) == 0 {
		add("name is required")
	} else if msgs := validation.IsDNS1035Label(s.Name); len(msgs) > 0 {
		add("name %q: %s", s.Name, strings.Join(msgs, ", "))
	}
	if len(s.DockerRepo) == 0 {
		add("docker_repo is required")
	}

	switch s.Platform {
	case PlatformGKE, PlatformKubeconfig, PlatformCloudRun:
	default:
		add("platform %q is not one of %s, %s, %s", s.Platform, PlatformGKE, PlatformKubeconfig, PlatformCloudRun)
	}

	if s.Platform == PlatformCloudRun && len(s.Region) == 0 {
		add("region is required on %s", PlatformCloudRun)
	}

	memory, err := resource.ParseQuantity(s.Memory)
	if err != nil {
		add("memory %q: %s", s.Memory, err)
	}
	cpu, err := resource.ParseQuantity(s.CPU)
	if err != nil {
		add("cpu %q: %s", s.CPU, err)
	}
	cpuLimit, err := resource.ParseQuantity(s.CPULimit)
	if err != nil {
		add("cpu_limit %q: %s", s.CPULimit, err)
	} else if cpuLimit.Cmp(cpu) < 0 {
		add("cpu_limit %s is lower than cpu %s", s.CPULimit, s.CPU)
	}
	if memory.IsZero() {
		add("memory must be larger than zero")
	}

	if s.Replicas < 1 {
		add("replicas must be at least 1")
	}
	if s.Port < 1 || s.Port > 65535 {
		add("port %d is out of range", s.Port)
	}
	if !strings.HasPrefix(s.HealthPath, "/") {
		add("health_path %q must start with '/'", s.HealthPath)
	}
	if len(s.Domain) > 0 {
		if msgs := validation.IsDNS1123Subdomain(s.Domain); len(msgs) > 0 {
			add("domain %q: %s", s.Domain, strings.Join(msgs, ", "))
		}
	}
	for _, name := range s.Secrets {
		if msgs := validation.IsEnvVarName(name); len(msgs) > 0 {
			add("secret %q: %s", name, strings.Join(msgs, ", "))
		}
	}

	if len(errs) > 0 {
		return failure.Errorf(failure.Configuration, "invalid configuration: %s", strings.Join(errs, "; "))
	}

	return nil
}
