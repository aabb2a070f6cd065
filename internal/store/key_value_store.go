package store

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/go-co-op/gocron/v2"
)

// KeyValueStore backs the panel's configuration endpoints: free-form
// key/value entries, optionally expiring.
type KeyValueStore struct {
	rdb, rwdb *sql.DB
}

func NewKeyValueStore(rdb, rwdb *sql.DB) *KeyValueStore {
	return &KeyValueStore{rdb, rwdb}
}

type ConfigEntry struct {
	ConfigKey   string     `json:"key"`
	ConfigValue string     `json:"value"`
	Expires     *time.Time `json:"expires"`
}

func (kvs *KeyValueStore) ScheduleDailyCleanUp(s gocron.Scheduler) {
	if _, err := s.NewJob(gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 0, 0))), gocron.NewTask(func() {
		if err := kvs.RemoveExpired(context.Background()); err != nil {
			log.Println("err deleting expired config entries:", err)
		}
	})); err != nil {
		log.Fatal(err)
	}
}

func (kvs *KeyValueStore) Set(ctx context.Context, key, value string, expires *time.Time) error {
	query := `insert into config_entries (config_key, config_value, expires)
	values ($1, $2, $3)
	on conflict (config_key) do update set
		config_value = excluded.config_value,
		expires = excluded.expires`
	_, err := kvs.rwdb.ExecContext(ctx, query, key, value, expires)
	return err
}

func (kvs *KeyValueStore) Get(ctx context.Context, key string) (*ConfigEntry, error) {
	e := new(ConfigEntry)
	query := "select * from config_entries where config_key = $1"
	if err := sqlscan.Get(ctx, kvs.rdb, e, query, key); err != nil {
		return nil, err
	}
	return e, nil
}

func (kvs *KeyValueStore) List(ctx context.Context) ([]ConfigEntry, error) {
	entries := make([]ConfigEntry, 0)
	query := "select * from config_entries order by config_key"
	err := sqlscan.Select(ctx, kvs.rdb, &entries, query)
	return entries, err
}

func (kvs *KeyValueStore) Delete(ctx context.Context, key string) error {
	_, err := kvs.rwdb.ExecContext(ctx, "delete from config_entries where config_key = $1", key)
	return err
}

func (kvs *KeyValueStore) RemoveExpired(ctx context.Context) error {
	query := "delete from config_entries where expires is not null and expires < current_timestamp"
	_, err := kvs.rwdb.ExecContext(ctx, query)
	return err
}
