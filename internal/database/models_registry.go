package database

import "campushub/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
// Join tables come after the rows they reference so AutoMigrate can add foreign keys.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Profile{},
		&models.Post{},
		&models.PostAura{},
		&models.Comment{},
		&models.SavedCollection{},
		&models.SavedPost{},
		&models.Story{},
		&models.Conversation{},
		&models.DirectMessage{},
		&models.Circle{},
		&models.CircleMember{},
		&models.CirclePost{},
		&models.CircleMessage{},
		&models.CircleJoinRequest{},
		&models.Notification{},
		&models.Poll{},
		&models.PollOption{},
		&models.PollVote{},
		&models.Confession{},
		&models.ConfessionAura{},
		&models.ConfessionComment{},
		&models.MarketplaceListing{},
		&models.MessMenu{},
		&models.SiteSetting{},
	}
}
