package linear

// Option is a function that configures LinearRegression
type Option func(*LinearRegression)

// WithFitIntercept sets whether to calculate the intercept.
// Disable it when the design matrix already spans a constant column,
// e.g. a complete one-hot block.
func WithFitIntercept(fit bool) Option {
	return func(lr *LinearRegression) {
		lr.fitIntercept = fit
	}
}

// WithTol sets the relative singular value cutoff used for rank detection.
// Singular values at or below tol * σmax count as zero. Non-positive
// values select the default of 1e-10.
func WithTol(tol float64) Option {
	return func(lr *LinearRegression) {
		lr.tol = tol
	}
}

// WithParallelThreshold sets the row count above which the design matrix
// and batch predictions are built concurrently.
func WithParallelThreshold(rows int) Option {
	return func(lr *LinearRegression) {
		lr.parallelThreshold = rows
	}
}
