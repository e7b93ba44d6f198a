package contextmgr

// effectiveBudget derives the token ceiling for the working context from
// the active model's limits and any output override:
//
//	effective_output = min(output_override or max_output, max_output)
//	available         = context_window - effective_output
//	safety_margin     = min(available / 20, 4096)
//	effective_budget  = available - safety_margin
func (cm *ContextManager) effectiveBudget() uint32 {
	effectiveOutput := cm.limits.MaxOutput
	if cm.outputOverride != nil && *cm.outputOverride < effectiveOutput {
		effectiveOutput = *cm.outputOverride
	}

	var available uint32
	if effectiveOutput < cm.limits.ContextWindow {
		available = cm.limits.ContextWindow - effectiveOutput
	}

	safetyMargin := available / 20
	if safetyMargin > 4096 {
		safetyMargin = 4096
	}

	if safetyMargin > available {
		return 0
	}
	return available - safetyMargin
}

// SetOutputLimit overrides the output-token reservation, clamped to the
// current model's max_output, and updates budget derivation accordingly.
func (cm *ContextManager) SetOutputLimit(n uint32) {
	if n > cm.limits.MaxOutput {
		n = cm.limits.MaxOutput
	}
	cm.outputOverride = &n
}

// EffectiveBudget exposes the derived token ceiling for diagnostics.
func (cm *ContextManager) EffectiveBudget() uint32 {
	return cm.effectiveBudget()
}
