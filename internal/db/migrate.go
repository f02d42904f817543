package db

import (
	"log"

	"github.com/districtr/districtr-v2-sub000/internal/geography"
	"github.com/districtr/districtr-v2-sub000/internal/lock"
	"github.com/districtr/districtr-v2-sub000/internal/plan"
)

// Migrate runs database migrations
func Migrate() {
	err := AppDb.AutoMigrate(
		&geography.MapConfiguration{},
		&geography.GeoUnit{},
		&geography.ParentChildEdge{},
		&plan.Document{},
		&plan.Assignment{},
		&plan.DistrictUnion{},
		&lock.EditLock{},
	)

	if err != nil {
		log.Fatal(err)
	}

	log.Println("Database schema migrated successfully")
}
