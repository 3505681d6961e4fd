package models

import "time"

// User is a dashboard account identified by vehicle number and RFID card.
type User struct {
	ID             string       `json:"id" yaml:"id"`
	VehicleID      string       `json:"vehicleId" yaml:"vehicleId"`
	RFIDHash       string       `json:"-" yaml:"rfidHash"`
	Email          string       `json:"email" yaml:"email"`
	Name           string       `json:"name" yaml:"name"`
	Phone          string       `json:"phone,omitempty" yaml:"phone"`
	IsAdmin        bool         `json:"isAdmin" yaml:"isAdmin"`
	MemberSince    time.Time    `json:"memberSince" yaml:"memberSince"`
	PreferredMode  ChargingMode `json:"preferredChargingMode" yaml:"preferredMode"`
	BatteryLevel   float64      `json:"batteryLevel" yaml:"batteryLevel"`
	InitialBalance float64      `json:"-" yaml:"initialBalance"`
}

// Role returns the token role for the user.
func (u User) Role() string {
	if u.IsAdmin {
		return "admin"
	}
	return "user"
}
