package engine

import (
	"strconv"
	"strings"

	"github.com/roach88/roadrunner/internal/artifact"
	"github.com/roach88/roadrunner/internal/model"
	"github.com/roach88/roadrunner/internal/plan"
)

// Environment variables exposed to adapters.
const (
	EnvRunID        = "RR_RUN_ID"
	EnvSubRunID     = "RR_SUB_RUN_ID"
	EnvStepAdapter  = "RR_STEP_ADAPTER"
	EnvStepName     = "RR_STEP_NAME"
	EnvMarginPoint  = "RR_MARGIN_POINT"
	EnvGlobalSeed   = "RR_GLOBAL_SEED"
	EnvParamPrefix  = "RR_PARAM_"
	EnvMarginPrefix = "RR_MARGIN_"
)

// envBuilder overlays KEY=VALUE entries on a base environment. Setting an
// existing key replaces it in place.
type envBuilder struct {
	entries []string
	index   map[string]int
}

func newEnvBuilder(base []string) *envBuilder {
	b := &envBuilder{
		entries: make([]string, 0, len(base)+16),
		index:   make(map[string]int, len(base)+16),
	}
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		b.set(key, kv)
	}
	return b
}

func (b *envBuilder) set(key, entry string) {
	if i, ok := b.index[key]; ok {
		b.entries[i] = entry
		return
	}
	b.index[key] = len(b.entries)
	b.entries = append(b.entries, entry)
}

func (b *envBuilder) Set(key, value string) {
	b.set(key, key+"="+value)
}

// StepEnvironment returns base plus the RR_* variables of one invocation.
//
// Parameter and margin keys are sanitized and upper-cased, so
// "vcore mv" becomes RR_MARGIN_VCORE-MV. Values use model.FormatValue.
func StepEnvironment(base []string, rp *plan.RunPlan, sub plan.SubRunPlan, step plan.StepPlan, params model.Values) []string {
	b := newEnvBuilder(base)
	b.Set(EnvRunID, rp.ParentID)
	b.Set(EnvSubRunID, sub.ID)
	b.Set(EnvStepAdapter, step.Step.Adapter)
	b.Set(EnvStepName, step.Step.Name)
	params.Each(func(key string, value any) {
		b.Set(EnvParamPrefix+envKey(key), model.FormatValue(value))
	})
	step.Margin.Each(func(key string, value any) {
		b.Set(EnvMarginPrefix+envKey(key), model.FormatValue(value))
	})
	b.Set(EnvMarginPoint, sub.Point.ID)
	b.Set(EnvGlobalSeed, strconv.FormatInt(rp.Seed, 10))
	return b.entries
}

func envKey(key string) string {
	return strings.ToUpper(artifact.Sanitize(key))
}
