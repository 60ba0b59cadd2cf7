package linear

// Option is a function that configures Ridge
type Option func(*Ridge)

// WithAlpha sets the L2 penalty strength
func WithAlpha(alpha float64) Option {
	return func(r *Ridge) {
		r.Alpha = alpha
	}
}

// WithFitIntercept sets whether to calculate the intercept
func WithFitIntercept(fit bool) Option {
	return func(r *Ridge) {
		r.fitIntercept = fit
	}
}

// WithFeatureNames attaches column names, used when exporting coefficients
func WithFeatureNames(names []string) Option {
	return func(r *Ridge) {
		r.FeatureNames = append([]string(nil), names...)
	}
}
