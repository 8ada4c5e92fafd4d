package mysql

import (
	"context"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"sweeping/ordersync/internal/entity"
)

func newMockTaskDAO(t *testing.T) (*TaskDAO, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	return NewTaskDAO(gdb), mock
}

// TestTaskCreate 新任务入库时状态强制 PENDING
func TestTaskCreate(t *testing.T) {
	dao, mock := newMockTaskDAO(t)

	mock.ExpectExec("INSERT INTO `upload_tasks`").
		WillReturnResult(sqlmock.NewResult(0, 1))

	task := &entity.UploadTask{ID: "task-1", PIC: "budi", Filename: "AURA-SHOPEE-1.xlsx", Status: "COMPLETED"}
	err := dao.Create(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, entity.TaskStatusPending, task.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestTaskTransitions 状态流转更新
func TestTaskTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("mark processing", func(t *testing.T) {
		dao, mock := newMockTaskDAO(t)
		mock.ExpectExec("UPDATE `upload_tasks` SET").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, dao.MarkProcessing(ctx, "task-1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("mark completed writes counters and timings", func(t *testing.T) {
		dao, mock := newMockTaskDAO(t)
		mock.ExpectExec("UPDATE `upload_tasks` SET").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := dao.MarkCompleted(ctx, "task-1",
			&UpsertResult{New: 3, Replaced: 2, Failed: 1}, 1,
			map[string]int64{"ingest": 12, "reconcile": 30450})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown task id is an error", func(t *testing.T) {
		dao, mock := newMockTaskDAO(t)
		mock.ExpectExec("UPDATE `upload_tasks` SET").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := dao.MarkProcessing(ctx, "no-such-task")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("mark failed truncates long message", func(t *testing.T) {
		dao, mock := newMockTaskDAO(t)
		mock.ExpectExec("UPDATE `upload_tasks` SET").
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := dao.MarkFailed(ctx, "task-1", strings.Repeat("x", 2000))
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

// TestTaskTerminal 终态判定
func TestTaskTerminal(t *testing.T) {
	assert.False(t, (&entity.UploadTask{Status: entity.TaskStatusPending}).Terminal())
	assert.False(t, (&entity.UploadTask{Status: entity.TaskStatusProcessing}).Terminal())
	assert.True(t, (&entity.UploadTask{Status: entity.TaskStatusCompleted}).Terminal())
	assert.True(t, (&entity.UploadTask{Status: entity.TaskStatusFailed}).Terminal())
}
