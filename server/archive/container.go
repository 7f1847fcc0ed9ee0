package archive

import "database/sql"

// Dependency injection container.
func Container(db *sql.DB) (*Handler, *Service) {
	var (
		r = NewRepository(db)
		s = NewService(r)
		h = NewHandler(s)
	)
	return h, s
}
