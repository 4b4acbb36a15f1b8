package converge

import (
	"fmt"
	"sort"
	"strings"

	corev1 "k8s.io/api/core/v1"
)

// PodState is the version and lifecycle phase of a single pod.
type PodState struct {
	Version string
	Phase   corev1.PodPhase
}

func (s PodState) String() string {
	return s.Version + "/" + string(s.Phase)
}

// Generation is the state of every pod of an application, terminating pods included.
type Generation []PodState

func ObserveGeneration(pods []corev1.Pod, versionLabel string) Generation {
	g := make(Generation, 0, len(pods))
	for _, pod := range pods {
		g = append(g, PodState{
			Version: pod.Labels[versionLabel],
			Phase:   pod.Status.Phase,
		})
	}
	return g
}

// Distinct returns every unique pod state, sorted.
func (g Generation) Distinct() []PodState {
	seen := make(map[PodState]bool)
	distinct := make([]PodState, 0)
	for _, state := range g {
		if seen[state] {
			continue
		}
		seen[state] = true
		distinct = append(distinct, state)
	}
	sort.Slice(distinct, func(i, j int) bool {
		if distinct[i].Version != distinct[j].Version {
			return distinct[i].Version < distinct[j].Version
		}
		return distinct[i].Phase < distinct[j].Phase
	})
	return distinct
}

// Converged is true when all pods run the same version.
func (g Generation) Converged() bool {
	distinct := g.Distinct()
	return len(distinct) == 1 && distinct[0].Phase == corev1.PodRunning
}

// ConvergedOn is true when all pods run the given version.
func (g Generation) ConvergedOn(version string) bool {
	return g.Converged() && g[0].Version == version
}

func (g Generation) String() string {
	distinct := g.Distinct()
	states := make([]string, 0, len(distinct))
	for _, state := range distinct {
		states = append(states, state.String())
	}
	return fmt.Sprintf("%d pods [%s]", len(g), strings.Join(states, " "))
}
