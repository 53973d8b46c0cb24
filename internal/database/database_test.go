package database_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/paper-tasks/internal/database"
	"github.com/yourusername/paper-tasks/internal/database/dbtest"
	"github.com/yourusername/paper-tasks/internal/models"
)

func TestSeedIsIdempotentAndKeepsExistingRows(t *testing.T) {
	db := dbtest.New(t)

	require.NoError(t, db.Model(&models.TaskStatus{}).
		Where("id = ?", models.StatusFailed).
		Update("name", "renamed_elsewhere").Error)
	require.NoError(t, db.Create(&models.TaskStatus{ID: 42, Name: "external"}).Error)

	require.NoError(t, database.Seed(db, nil))
	require.NoError(t, database.Seed(db, nil))

	var statuses []models.TaskStatus
	require.NoError(t, db.Order("id").Find(&statuses).Error)
	assert.Len(t, statuses, 7)

	var failed models.TaskStatus
	require.NoError(t, db.First(&failed, "id = ?", models.StatusFailed).Error)
	assert.Equal(t, "renamed_elsewhere", failed.Name)

	var processes int64
	require.NoError(t, db.Model(&models.TaskProcess{}).Count(&processes).Error)
	assert.EqualValues(t, 5, processes)
}

func TestSeedFillsMissingRows(t *testing.T) {
	db := dbtest.New(t)

	require.NoError(t, db.Where("id = ?", models.ProcessUnlock).Delete(&models.TaskProcess{}).Error)
	require.NoError(t, database.Seed(db, nil))

	var unlock models.TaskProcess
	require.NoError(t, db.First(&unlock, "id = ?", models.ProcessUnlock).Error)
	assert.Equal(t, "pdf_unlock", unlock.Name)
}
