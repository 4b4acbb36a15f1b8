package applier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/jsonmergepatch"

	"github.com/nais/promote/pkg/failure"
	"github.com/nais/promote/pkg/k8sutils"
	"github.com/nais/promote/pkg/kubeclient"
	"github.com/nais/promote/pkg/metrics"
	"github.com/nais/promote/pkg/resources"
	"github.com/nais/promote/pkg/telemetry"
)

// Applier creates or updates resources in the cluster it is bound to.
//
// Whether a resource exists is decided from a fresh query immediately before acting upon it.
// Nothing prevents another client from creating the same resource in between.
type Applier struct {
	client kubeclient.Interface
	logger *log.Entry
}

func New(client kubeclient.Interface, logger *log.Entry) *Applier {
	return &Applier{
		client: client,
		logger: logger,
	}
}

func (a *Applier) Apply(ctx context.Context, description resources.Description) (Result, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "Apply "+string(description.Kind))
	defer span.End()

	id := k8sutils.ResourceIdentifier(description.Object, a.client.Cluster())
	logger := a.logger.WithFields(id.LogFields())
	span.SetAttributes(attribute.String("resource", id.String()))

	result, err := a.apply(ctx, description)
	metrics.ResourceApplied(string(description.Kind), result.String())

	if err != nil {
		telemetry.Fail(span, err)
		return Failed, failure.Errorf(failure.Apply, "apply %s: %w", id, err)
	}

	span.SetAttributes(attribute.String("result", result.String()))
	logger.Infof("%s %s", id, strings.ReplaceAll(result.String(), "_", " "))

	return result, nil
}

// ApplyAll applies descriptions in order and stops at the first failure.
func (a *Applier) ApplyAll(ctx context.Context, descriptions []resources.Description) ([]Result, error) {
	results := make([]Result, 0, len(descriptions))
	for _, description := range descriptions {
		result, err := a.Apply(ctx, description)
		results = append(results, result)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func (a *Applier) apply(ctx context.Context, description resources.Description) (Result, error) {
	client := a.client.ResourceInterface(description.GVR, description.Namespace)

	resource := description.Object.DeepCopy()
	configuration, err := lastAppliedConfiguration(resource)
	if err != nil {
		return Failed, err
	}

	existing, err := client.Get(ctx, description.Name, metav1.GetOptions{})
	if errors.IsNotFound(err) {
		_, err = client.Create(ctx, resource, metav1.CreateOptions{
			FieldValidation: metav1.FieldValidationStrict,
		})
		if err != nil {
			return Failed, fmt.Errorf("creating resource: %w", transformStrictDecodingError(err))
		}
		return Created, nil
	} else if err != nil {
		return Failed, fmt.Errorf("get existing resource: %w", err)
	}

	if !description.Kind.Mutable() {
		return AlreadyExists, nil
	}

	original := existing.GetAnnotations()[corev1.LastAppliedConfigAnnotation]
	if original == string(configuration) {
		return AlreadyExists, nil
	}

	modified, err := json.Marshal(resource.Object)
	if err != nil {
		return Failed, err
	}
	current, err := json.Marshal(existing.Object)
	if err != nil {
		return Failed, err
	}

	patch, err := jsonmergepatch.CreateThreeWayJSONMergePatch([]byte(original), modified, current)
	if err != nil {
		return Failed, fmt.Errorf("computing patch: %w", err)
	}

	_, err = client.Patch(ctx, description.Name, types.MergePatchType, patch, metav1.PatchOptions{
		FieldValidation: metav1.FieldValidationStrict,
	})
	if err != nil {
		return Failed, fmt.Errorf("updating resource: %w", transformStrictDecodingError(err))
	}

	return Updated, nil
}

// lastAppliedConfiguration encodes the resource as submitted, and records the
// encoding in the resource itself.
func lastAppliedConfiguration(resource *unstructured.Unstructured) ([]byte, error) {
	configuration, err := json.Marshal(resource.Object)
	if err != nil {
		return nil, fmt.Errorf("encoding resource: %w", err)
	}

	annotations := resource.GetAnnotations()
	if annotations == nil {
		annotations = make(map[string]string)
	}
	annotations[corev1.LastAppliedConfigAnnotation] = string(configuration)
	resource.SetAnnotations(annotations)

	return configuration, nil
}

func transformStrictDecodingError(err error) error {
	msg := err.Error()

	// Kubernetes doesn't expose any error types, so we have to rely on the error message for now
	const strictDecodingError = "strict decoding error:"

	if !strings.Contains(msg, strictDecodingError) {
		return err
	}

	// > Deployment in version "v1" cannot be handled as a Deployment: strict decoding error: unknown field "spec.foo", ...
	parts := strings.SplitAfterN(msg, strictDecodingError, 2)
	if len(parts) > 1 {
		msg = parts[1]
	}

	s := &strings.Builder{}
	s.WriteString(strictDecodingError)

	// multiple errors are joined as a comma separated string; split them up again
	errs := strings.Split(msg, ",")
	for _, e := range errs {
		s.WriteString("\n| ")
		s.WriteString(strings.TrimSpace(e))
	}

	s.WriteString("\n| The cluster does not support the field")
	if len(errs) > 1 {
		s.WriteString("s")
	}
	s.WriteString(" above; check that the cluster version matches the resources rendered by this tool.")

	return fmt.Errorf("%s", s.String())
}
