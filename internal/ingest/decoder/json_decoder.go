package decoder

import (
	"encoding/json"
	"fmt"

	"github.com/Avi18971911/Tally/internal/analytics/model"
	"github.com/tidwall/gjson"
)

// DecodeJSONEnvelope turns one JSON object into a batch. Objects produced by a
// JSON log layout carry the envelope as a string in their "message" field and
// are unwrapped first.
func DecodeJSONEnvelope(data []byte) (model.Batch, error) {
	if !gjson.ValidBytes(data) {
		return model.Batch{}, fmt.Errorf("%w: invalid json", ErrNotAnEnvelope)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return model.Batch{}, fmt.Errorf("%w: not an object", ErrNotAnEnvelope)
	}
	if !root.Get("appName").Exists() {
		message := root.Get("message")
		if message.Type != gjson.String || !gjson.Valid(message.Str) {
			return model.Batch{}, fmt.Errorf("%w: no appName", ErrNotAnEnvelope)
		}
		data = []byte(message.Str)
		root = gjson.ParseBytes(data)
		if !root.IsObject() || !root.Get("appName").Exists() {
			return model.Batch{}, fmt.Errorf("%w: no appName in message", ErrNotAnEnvelope)
		}
	}

	if isEmptyBulk(root) {
		return model.Batch{
			AppName: root.Get("appName").String(),
			Host:    root.Get("host").String(),
			Bulk:    true,
		}, nil
	}

	kind, err := detectKind(root)
	if err != nil {
		return model.Batch{}, err
	}
	return DecodeEnvelope(kind, data)
}

// DecodeEnvelope decodes an envelope whose kind is already known.
func DecodeEnvelope(kind model.EventKind, data []byte) (model.Batch, error) {
	switch kind {
	case model.KindTrace:
		env, err := decodeTyped[model.Span](data)
		if err != nil {
			return model.Batch{}, err
		}
		return model.TraceBatch(env), nil
	case model.KindHealth:
		env, err := decodeTyped[model.HealthCheck](data)
		if err != nil {
			return model.Batch{}, err
		}
		return model.HealthBatch(env), nil
	case model.KindMetric:
		env, err := decodeTyped[model.Metric](data)
		if err != nil {
			return model.Batch{}, err
		}
		return model.MetricBatch(env), nil
	}
	return model.Batch{}, fmt.Errorf("%w: %w", ErrNotAnEnvelope, model.ErrUnknownKind)
}

func decodeTyped[T any](data []byte) (model.Envelope[T], error) {
	var env model.Envelope[T]
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("%w: %w", ErrNotAnEnvelope, err)
	}
	if err := env.Validate(); err != nil {
		return env, fmt.Errorf("%w: %w", ErrNotAnEnvelope, err)
	}
	return env, nil
}

// isEmptyBulk matches a well formed envelope whose events array is empty, which
// leaves nothing to classify.
func isEmptyBulk(root gjson.Result) bool {
	if root.Get("appName").Type != gjson.String {
		return false
	}
	if event := root.Get("event"); event.Exists() && event.Type != gjson.Null {
		return false
	}
	events := root.Get("events")
	return events.IsArray() && len(events.Array()) == 0
}

// detectKind classifies an envelope by the fields present on its first event.
func detectKind(root gjson.Result) (model.EventKind, error) {
	sample := root.Get("event")
	if !sample.Exists() || sample.Type == gjson.Null {
		sample = root.Get("events.0")
	}
	if !sample.IsObject() {
		return "", fmt.Errorf("%w: no event to classify", ErrNotAnEnvelope)
	}
	switch {
	case sample.Get("category").Exists():
		return model.KindTrace, nil
	case sample.Get("checker").Exists(), sample.Get("measure").Exists(), sample.Get("healthMeasure").Exists():
		return model.KindHealth, nil
	case sample.Get("value").Exists():
		return model.KindMetric, nil
	}
	return "", fmt.Errorf("%w: unrecognised event shape", ErrNotAnEnvelope)
}
