package sqlxrepos

import (
	"os"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/academia/lms/tests"
)

var db *sqlx.DB

func TestMain(m *testing.M) {
	db = testutil.OpenDB()
	code := m.Run()
	_ = db.Close()
	os.Exit(code)
}
