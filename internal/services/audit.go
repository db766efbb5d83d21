package services

import (
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Max0709202/real-estate-ai-card-sub002/internal/models"
)

func writeAudit(tx *gorm.DB, actorType string, actorID uint, action, targetType string, targetID uint, details map[string]interface{}) error {
	entry := models.AuditLog{
		ActorType:  actorType,
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
	}
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			return err
		}
		entry.Details = datatypes.JSON(raw)
	}
	return tx.Create(&entry).Error
}
