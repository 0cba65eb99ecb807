package warehouse

import "context"

// HealthCheck logs the row counts of the given schema objects after a load.
// It is purely observational: a count failure is logged and never fails the
// run, and nothing is modified.
func (s *Store) HealthCheck(ctx context.Context, objects ...string) {
	counts := make([]any, 0, len(objects)*2)
	for _, object := range objects {
		count, err := s.CountRows(ctx, object)
		if err != nil {
			s.log.Warn("health check count failed", "object", object, "error", err)
			continue
		}
		counts = append(counts, object, count)
	}
	s.log.Info("health check", counts...)
}
