package sweeper

// WithRemove swaps the file removal call.
func WithRemove(remove func(string) error) Option {
	return func(s *Sweeper) {
		if remove != nil {
			s.remove = remove
		}
	}
}
