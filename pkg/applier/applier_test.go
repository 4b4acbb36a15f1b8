package applier_test

import (
	"context"
	"fmt"
	"testing"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/nais/promote/pkg/applier"
	"github.com/nais/promote/pkg/environment"
	"github.com/nais/promote/pkg/failure"
	"github.com/nais/promote/pkg/kubeclient"
	"github.com/nais/promote/pkg/resources"
)

func target(domain string) environment.Target {
	return environment.Target{
		Environment: environment.Staging,
		App:         "helloworld",
		ClusterName: "helloworld-staging",
		Namespace:   "helloworld-staging",
		Domain:      domain,
		Repository:  "eu.gcr.io/acme",
		Version:     "v1",
		Memory:      "512Mi",
		CPU:         "250m",
		CPULimit:    "1",
		Replicas:    1,
		Port:        8080,
		HealthPath:  "/ping",
		Secrets:     map[string]string{},
	}
}

func setup() (*applier.Applier, *dynamicfake.FakeDynamicClient, *logtest.Hook) {
	dyn := dynamicfake.NewSimpleDynamicClient(runtime.NewScheme())
	client := kubeclient.NewFromClients(fake.NewSimpleClientset(), dyn, "helloworld-staging", "helloworld-staging")
	logger, hook := logtest.NewNullLogger()
	return applier.New(client, log.NewEntry(logger)), dyn, hook
}

func build(t *testing.T, tgt environment.Target, kind resources.Kind) resources.Description {
	d, err := resources.Builder{}.Build(tgt, kind)
	require.NoError(t, err)
	return d
}

func get(t *testing.T, dyn *dynamicfake.FakeDynamicClient, d resources.Description) *unstructured.Unstructured {
	obj, err := dyn.Resource(d.GVR).Namespace(d.Namespace).Get(context.Background(), d.Name, metav1.GetOptions{})
	require.NoError(t, err)
	return obj
}

func TestApplyTwiceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	a, dyn, hook := setup()
	ns := build(t, target(""), resources.Namespace)

	first, err := a.Apply(ctx, ns)
	require.NoError(t, err)
	second, err := a.Apply(ctx, ns)
	require.NoError(t, err)

	assert.Equal(t, []applier.Result{applier.Created, applier.AlreadyExists}, []applier.Result{first, second})
	assert.Equal(t, "Namespace helloworld-staging in cluster helloworld-staging already exists", hook.LastEntry().Message)
	assert.Equal(t, "Namespace", hook.LastEntry().Data["kind"])

	stored := get(t, dyn, ns)
	assert.Contains(t, stored.GetAnnotations(), corev1.LastAppliedConfigAnnotation)
}

func TestImmutableKindIsNeverUpdated(t *testing.T) {
	ctx := context.Background()
	a, dyn, _ := setup()

	cert := build(t, target("hello.example.com"), resources.Certificate)
	_, err := a.Apply(ctx, cert)
	require.NoError(t, err)

	result, err := a.Apply(ctx, build(t, target("hello.example.org"), resources.Certificate))
	require.NoError(t, err)
	assert.Equal(t, applier.AlreadyExists, result)

	domains, _, _ := unstructured.NestedStringSlice(get(t, dyn, cert).Object, "spec", "domains")
	assert.Equal(t, []string{"hello.example.com"}, domains)

	for _, action := range dyn.Actions() {
		assert.NotEqual(t, "patch", action.GetVerb())
		assert.NotEqual(t, "update", action.GetVerb())
	}
}

func TestServiceIsPatchedWhenDomainIsAdded(t *testing.T) {
	ctx := context.Background()
	a, dyn, _ := setup()

	svc := build(t, target(""), resources.Service)
	_, err := a.Apply(ctx, svc)
	require.NoError(t, err)

	result, err := a.Apply(ctx, build(t, target("hello.example.com"), resources.Service))
	require.NoError(t, err)
	assert.Equal(t, applier.Updated, result)

	stored := get(t, dyn, svc)
	serviceType, _, _ := unstructured.NestedString(stored.Object, "spec", "type")
	assert.Equal(t, string(corev1.ServiceTypeNodePort), serviceType)
	assert.Equal(t, `{"default":"helloworld"}`, stored.GetAnnotations()[resources.BackendConfigAnnotation])
}

func TestDeploymentIsPatchedOnChange(t *testing.T) {
	ctx := context.Background()
	a, dyn, _ := setup()

	v1 := build(t, target(""), resources.Deployment)
	first, err := a.Apply(ctx, v1)
	require.NoError(t, err)
	second, err := a.Apply(ctx, v1)
	require.NoError(t, err)
	assert.Equal(t, []applier.Result{applier.Created, applier.AlreadyExists}, []applier.Result{first, second})

	tgt := target("")
	tgt.Version = "v2"
	v2 := build(t, tgt, resources.Deployment)
	third, err := a.Apply(ctx, v2)
	require.NoError(t, err)
	assert.Equal(t, applier.Updated, third)

	stored := get(t, dyn, v2)
	containers, _, _ := unstructured.NestedSlice(stored.Object, "spec", "template", "spec", "containers")
	require.Len(t, containers, 1)
	assert.Equal(t, "eu.gcr.io/acme/helloworld:v2", containers[0].(map[string]any)["image"])

	labels, _, _ := unstructured.NestedStringMap(stored.Object, "spec", "template", "metadata", "labels")
	assert.Equal(t, "v2", labels["version"])

	fourth, err := a.Apply(ctx, v2)
	require.NoError(t, err)
	assert.Equal(t, applier.AlreadyExists, fourth)
}

func TestApplyAllOrder(t *testing.T) {
	ctx := context.Background()
	a, dyn, _ := setup()

	descriptions, err := resources.Builder{}.BuildAll(target("hello.example.com"))
	require.NoError(t, err)

	results, err := a.ApplyAll(ctx, descriptions)
	require.NoError(t, err)
	assert.Len(t, results, 6)

	created := make([]string, 0)
	for _, action := range dyn.Actions() {
		if action.GetVerb() == "create" {
			created = append(created, action.GetResource().Resource)
		}
	}
	assert.Equal(t, []string{
		"namespaces",
		"deployments",
		"managedcertificates",
		"backendconfigs",
		"services",
		"ingresses",
	}, created)

	dyn.ClearActions()
	results, err = a.ApplyAll(ctx, descriptions)
	require.NoError(t, err)
	for _, result := range results {
		assert.Equal(t, applier.AlreadyExists, result)
	}
	for _, action := range dyn.Actions() {
		assert.Equal(t, "get", action.GetVerb())
	}
}

func TestApplyAllStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	a, dyn, _ := setup()

	dyn.PrependReactor("create", "deployments", func(action k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, fmt.Errorf("admission webhook denied the request")
	})

	descriptions, err := resources.Builder{}.BuildAll(target(""))
	require.NoError(t, err)

	results, err := a.ApplyAll(ctx, descriptions)
	assert.Equal(t, []applier.Result{applier.Created, applier.Failed}, results)
	assert.Equal(t, failure.Apply, failure.KindOf(err))
	assert.ErrorContains(t, err, "admission webhook denied the request")

	for _, action := range dyn.Actions() {
		assert.NotEqual(t, "services", action.GetResource().Resource)
	}
}

func TestStrictDecodingError(t *testing.T) {
	ctx := context.Background()
	a, dyn, _ := setup()

	dyn.PrependReactor("create", "namespaces", func(action k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, fmt.Errorf(`Namespace in version "v1" cannot be handled as a Namespace: strict decoding error: unknown field "spec.foo", unknown field "spec.bar"`)
	})

	_, err := a.Apply(ctx, build(t, target(""), resources.Namespace))
	assert.Equal(t, failure.Apply, failure.KindOf(err))
	assert.Contains(t, err.Error(), "strict decoding error:\n| unknown field \"spec.foo\"\n| unknown field \"spec.bar\"")
	assert.Contains(t, err.Error(), "does not support the fields above")
}

func TestGetFailure(t *testing.T) {
	ctx := context.Background()
	a, dyn, _ := setup()

	dyn.PrependReactor("get", "*", func(action k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, fmt.Errorf("connection refused")
	})

	result, err := a.Apply(ctx, build(t, target(""), resources.Namespace))
	assert.Equal(t, applier.Failed, result)
	assert.Equal(t, failure.Apply, failure.KindOf(err))
	assert.ErrorContains(t, err, "get existing resource: connection refused")
}
