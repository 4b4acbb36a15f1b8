package resources

import (
	"fmt"
	"os"
	"strings"

	"github.com/nais/promote/pkg/environment"
	"github.com/nais/promote/pkg/version"
)

const (
	ChangeCauseAnnotation   = "kubernetes.io/change-cause"
	ClientVersionAnnotation = "promote.nais.io/client-version"
	WorkflowRunAnnotation   = "promote.nais.io/github-workflow-run-url"

	BackendConfigAnnotation       = "cloud.google.com/backend-config"
	ManagedCertificatesAnnotation = "networking.gke.io/managed-certificates"
	IngressClassAnnotation        = "kubernetes.io/ingress.class"
	StaticIPAnnotation            = "kubernetes.io/ingress.global-static-ip-name"

	AppLabel     = "app"
	VersionLabel = "version"

	ingressClassGCE = "gce"
)

// BuildEnvironmentAnnotations records where a promotion was started from, using
// the variables set by GitHub Actions and Jenkins.
// https://docs.github.com/en/actions/reference/environment-variables#default-environment-variables
func BuildEnvironmentAnnotations(lookup environment.LookupFunc) map[string]string {
	a := make(map[string]string)

	for _, v := range []string{"GITHUB_ACTOR", "GITHUB_SHA", "BUILD_URL", "GIT_COMMIT"} {
		value, found := lookup(v)
		if found {
			a["promote.nais.io/"+strings.ReplaceAll(strings.ToLower(v), "_", "-")] = value
		}
	}

	a[ClientVersionAnnotation] = version.Version()
	runurl := githubWorkflowRunURL(lookup)
	if len(runurl) > 0 {
		a[WorkflowRunAnnotation] = runurl
	}

	return a
}

// OSLookup reads annotations from the process environment.
func OSLookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

func changeCause(target environment.Target, annotations map[string]string) string {
	cause := fmt.Sprintf("promote %s to %s", target.Version, target.Name())

	var commit, url string
	for _, key := range []string{"promote.nais.io/github-sha", "promote.nais.io/git-commit"} {
		if value, ok := annotations[key]; ok {
			commit = value
			break
		}
	}
	for _, key := range []string{WorkflowRunAnnotation, "promote.nais.io/build-url"} {
		if value, ok := annotations[key]; ok {
			url = value
			break
		}
	}

	if len(commit) == 0 || len(url) == 0 {
		return cause
	}

	return fmt.Sprintf("%s: commit %s: %s", cause, commit, url)
}

func githubWorkflowRunURL(lookup environment.LookupFunc) string {
	server, ok := lookup("GITHUB_SERVER_URL")
	if !ok {
		return ""
	}
	repo, ok := lookup("GITHUB_REPOSITORY")
	if !ok {
		return ""
	}
	runid, ok := lookup("GITHUB_RUN_ID")
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s/%s/actions/runs/%s", server, repo, runid)
}
