// Command seed provisions a few residents and a starter catalog so the API
// can be exercised locally.  It refuses to touch a database that already has
// rewards.
package main

import (
	"context"
	"time"

	"github.com/iliyamo/barangay-rewards/internal/config"
	"github.com/iliyamo/barangay-rewards/internal/database"
	"github.com/iliyamo/barangay-rewards/internal/logger"
	"github.com/iliyamo/barangay-rewards/internal/model"
	"github.com/iliyamo/barangay-rewards/internal/repository"
)

var starterCatalog = []model.Reward{
	{Name: "Bronze Volunteer Trophy", Description: "Joined your first clean-up drive", SlotCategory: model.SlotTrophy, PointsRequired: 20},
	{Name: "Silver Volunteer Trophy", Description: "Ten community activities attended", SlotCategory: model.SlotTrophy, PointsRequired: 60},
	{Name: "Bamboo Frame", SlotCategory: model.SlotFrame, PointsRequired: 80},
	{Name: "Sampaguita Frame", SlotCategory: model.SlotFrame, PointsRequired: 10},
	{Name: "Bayanihan Hero", SlotCategory: model.SlotTitle, PointsRequired: 50},
	{Name: "Rice Pack (5kg)", Description: "Claim at the barangay hall", SlotCategory: model.SlotGoods, PointsRequired: 150},
	{Name: "Fiesta Raffle Ticket", SlotCategory: model.SlotTicket, PointsRequired: 5},
}

func main() {
	cfg, err := config.Load()
	log := logger.New("info")
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	db, _, err := database.Open(cfg.DB)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rewards := repository.NewRewardRepo(db)
	existing, err := rewards.List(ctx)
	if err != nil {
		log.WithError(err).Fatal("list rewards")
	}
	if len(existing) > 0 {
		log.WithField("rewards", len(existing)).Info("catalog already seeded, nothing to do")
		return
	}
	for i := range starterCatalog {
		rw := starterCatalog[i]
		rw.Active = true
		if err := rewards.Create(ctx, &rw); err != nil {
			log.WithError(err).WithField("reward", rw.Name).Fatal("create reward")
		}
	}

	balances := repository.NewBalanceRepo(db)
	for id, pts := range map[int64]int{1: 100, 2: 250, 3: 0} {
		if err := balances.Provision(ctx, id, pts, pts); err != nil {
			log.WithError(err).WithField("resident_id", id).Warn("provision balance")
		}
	}
	log.WithField("rewards", len(starterCatalog)).Info("seed complete")
}
