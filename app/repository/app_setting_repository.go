package repository

import (
	"gorm.io/gorm"

	"github.com/arclightai/arclight-admin/app/models"
)

// appSettingRepository implements AppSettingRepository with GORM
type appSettingRepository struct {
	db *gorm.DB
}

// NewAppSettingRepository creates a new settings repository
func NewAppSettingRepository(db *gorm.DB) AppSettingRepository {
	return &appSettingRepository{db: db}
}

// Get returns the singleton settings row, creating it with defaults on
// first access.
func (r *appSettingRepository) Get() (*models.AppSetting, error) {
	setting := models.AppSetting{ID: models.AppSettingRowID}
	err := r.db.Where("id = ?", models.AppSettingRowID).FirstOrCreate(&setting).Error
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

func (r *appSettingRepository) Save(setting *models.AppSetting) error {
	setting.ID = models.AppSettingRowID
	return r.db.Save(setting).Error
}
