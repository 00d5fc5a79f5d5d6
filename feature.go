package idsclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fleetsignal/idsclient/internal/model"
	"github.com/fleetsignal/idsclient/internal/signal"
)

// GetFeature fetches the raw feature record for key from the cached
// check-in document and, on a hit, side-emits a $feature_flag_called
// event carrying $feature_flag and $feature_flag_response. Free function
// because Go methods cannot introduce new type parameters; every
// decode-oriented helper below is built on top of this one.
func GetFeature(ctx context.Context, r *Recorder, key string) (*model.Feature, bool, error) {
	reply := make(chan *model.Feature, 1)
	if err := r.sendConfig(ctx, signal.GetFeature{Name: key, Reply: reply}); err != nil {
		return nil, false, err
	}

	var feat *model.Feature
	select {
	case feat = <-reply:
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}

	if feat == nil {
		return nil, false, nil
	}

	emitFeatureFlagCalled(ctx, r, key, feat)
	return feat, true, nil
}

func emitFeatureFlagCalled(ctx context.Context, r *Recorder, key string, feat *model.Feature) {
	var variant any
	if len(feat.Variant) > 0 {
		if err := json.Unmarshal(feat.Variant, &variant); err != nil {
			r.shared.log.Debugf("feature: decoding variant for %q failed: %v", key, err)
		}
	}

	props := model.NewMap[any]()
	props.Set("$feature_flag", key)
	props.Set("$feature_flag_response", variant)

	if err := r.Record(ctx, "$feature_flag_called", props); err != nil {
		r.shared.log.Debugf("feature: recording $feature_flag_called for %q failed: %v", key, err)
	}
}

// GetFeatureVariant decodes a feature's variant into T.
func GetFeatureVariant[T any](ctx context.Context, r *Recorder, key string) (T, bool, error) {
	var zero T
	feat, ok, err := GetFeature(ctx, r, key)
	if err != nil || !ok {
		return zero, ok, err
	}
	v, err := model.DecodeVariant[T](*feat)
	return v, true, err
}

// GetFeaturePayload decodes a feature's double-encoded payload into T.
func GetFeaturePayload[T any](ctx context.Context, r *Recorder, key string) (T, bool, error) {
	var zero T
	feat, ok, err := GetFeature(ctx, r, key)
	if err != nil || !ok {
		return zero, false, err
	}
	return model.DecodePayload[T](*feat)
}

// GetFeaturePtr treats key's payload as the name of another feature and
// decodes that feature's variant into T, one level of indirection.
func GetFeaturePtr[T any](ctx context.Context, r *Recorder, key string) (T, bool, error) {
	var zero T
	feat, ok, err := GetFeature(ctx, r, key)
	if err != nil || !ok {
		return zero, false, err
	}
	if feat.Payload == nil {
		return zero, false, nil
	}

	var targetKey string
	if err := json.Unmarshal([]byte(*feat.Payload), &targetKey); err != nil {
		return zero, false, fmt.Errorf("idsclient: feature %q payload is not a feature-name string: %w", key, err)
	}
	return GetFeatureVariant[T](ctx, r, targetKey)
}
