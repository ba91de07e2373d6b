package linear

// Option configures LinearRegression.
type Option func(*LinearRegression)

// WithFitIntercept sets whether to calculate the intercept
func WithFitIntercept(fit bool) Option {
	return func(lr *LinearRegression) {
		lr.fitIntercept = fit
	}
}

// ElasticNetOption configures ElasticNet.
type ElasticNetOption func(*ElasticNet)

// WithMaxIter sets the maximum number of coordinate descent sweeps.
func WithMaxIter(n int) ElasticNetOption {
	return func(en *ElasticNet) {
		en.maxIter = n
	}
}

// WithTol sets the convergence tolerance on the largest coefficient change
// in one sweep, relative to the largest coefficient.
func WithTol(tol float64) ElasticNetOption {
	return func(en *ElasticNet) {
		en.tol = tol
	}
}
