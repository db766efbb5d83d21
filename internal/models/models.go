package models

// All lists every table in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&EmailInvitation{},
		&Admin{},
		&SlugCounter{},
		&BusinessCard{},
		&GreetingMessage{},
		&TechToolSelection{},
		&CommunicationMethod{},
		&Subscription{},
		&Payment{},
		&AuditLog{},
	}
}
