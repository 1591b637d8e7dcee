package postgres

// Repository aggregates all Postgres repositories
type Repository struct {
	ds *Datastore

	Task    *TaskRepository
	Credit  *CreditRepository
	History *HistoryRepository
	Order   *OrderRepository
}

// NewRepository creates a new Postgres repository with all sub-repositories
func NewRepository(dsn string) (*Repository, error) {
	ds, err := NewDatastore(dsn)
	if err != nil {
		return nil, err
	}

	return &Repository{
		ds:      ds,
		Task:    NewTaskRepository(ds),
		Credit:  NewCreditRepository(ds),
		History: NewHistoryRepository(ds),
		Order:   NewOrderRepository(ds),
	}, nil
}

// GetDatastore returns the underlying datastore for transaction support
func (r *Repository) GetDatastore() *Datastore {
	return r.ds
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.ds.Close()
}
