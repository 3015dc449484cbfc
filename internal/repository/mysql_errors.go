package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers the store reacts to.
const (
	mysqlErrDuplicateEntry  = 1062
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

func mysqlErrNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

func isDuplicate(err error) bool { return mysqlErrNumber(err) == mysqlErrDuplicateEntry }

// translate maps lock-related server errors onto ErrBusy and leaves the
// rest untouched.
func translate(err error) error {
	switch mysqlErrNumber(err) {
	case mysqlErrLockWaitTimeout, mysqlErrDeadlock:
		return errors.Join(ErrBusy, err)
	}
	return err
}
