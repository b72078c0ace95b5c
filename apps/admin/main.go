package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/academia/lms/core"
	"github.com/academia/lms/core/activity"
	"github.com/academia/lms/core/user"
	logsvc "github.com/academia/lms/services/logger"
	"github.com/academia/lms/storage/database"
	sqlxrepos "github.com/academia/lms/storage/database/sqlx"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()
	rollbarLogger := logsvc.NewRollbarLogger(log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	defer rollbarLogger.Close()
	logger = rollbarLogger

	ctx := context.Background()

	// set up DB
	errAndDie(database.CreateIfNotExist(ctx, conf))
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(database.Ping(ctx, db))

	// set up validation
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(logger)

	// start CLI
	usrRepo := sqlxrepos.NewUserRepository(db)
	crsRepo := sqlxrepos.NewCourseRepository(db)
	actRepo := sqlxrepos.NewActivityRepository(db)
	cli := commandLine{
		db:       db,
		engine:   conf.Database.Engine,
		out:      os.Stdout,
		validate: validate,
		usrSvc:   user.NewService(db, usrRepo, nil /* no mails */),
		usrRepo:  usrRepo,
		crsRepo:  crsRepo,
		actSvc:   activity.NewService(db, actRepo, crsRepo, usrRepo),
		actRepo:  actRepo,
	}
	if err := cli.run(ctx, os.Args[1:]); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		_ = db.Close()
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(fmt.Sprintf("admin: %v", err), err)
	}
}
