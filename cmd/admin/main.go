// Command admin runs maintenance tasks against the MySQL store.
//
//	admin create-admin -name Ana -email ana@example.com -password secret123
//	admin reprice -price 2.50
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/rl1809/heladeria/internal/adapter/storage"
	"github.com/rl1809/heladeria/internal/config"
	"github.com/rl1809/heladeria/internal/core/service"
	"github.com/rl1809/heladeria/internal/obs"
)

const usage = `usage: admin <command> [flags]

commands:
  create-admin -name NAME -email EMAIL -password PASSWORD
  reprice -price PRICE
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	obs.InitLogger(os.Getenv("LOG_LEVEL"))

	var err error
	switch os.Args[1] {
	case "create-admin":
		err = createAdmin(os.Args[2:])
	case "reprice":
		err = reprice(os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, dsn string) (*storage.MySQLAdapter, func(), error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping mysql: %w", err)
	}

	adapter := storage.NewMySQLAdapter(db)
	if err := adapter.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return adapter, func() { db.Close() }, nil
}

func createAdmin(args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ExitOnError)
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "login email")
	password := fs.String("password", "", "login password")
	dsn := fs.String("dsn", config.MySQLDSN(), "MySQL data source name")
	fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, closeStore, err := openStore(ctx, *dsn)
	if err != nil {
		return err
	}
	defer closeStore()

	// Token issuance is never used here
	accounts := service.NewAccountService(store, nil)
	acc, err := accounts.CreateAdmin(ctx, service.RegisterInput{Name: *name, Email: *email, Password: *password})
	if err != nil {
		return err
	}

	fmt.Printf("admin created: id=%s email=%s\n", acc.ID, acc.Email)
	return nil
}

func reprice(args []string) error {
	fs := flag.NewFlagSet("reprice", flag.ExitOnError)
	price := fs.String("price", "", "new unit price for every product, e.g. 2.50")
	dsn := fs.String("dsn", config.MySQLDSN(), "MySQL data source name")
	fs.Parse(args)

	p, err := decimal.NewFromString(*price)
	if err != nil {
		return fmt.Errorf("invalid -price %q: %w", *price, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, closeStore, err := openStore(ctx, *dsn)
	if err != nil {
		return err
	}
	defer closeStore()

	n, err := service.NewCatalogService(store, store).Reprice(ctx, p)
	if err != nil {
		return err
	}

	fmt.Printf("repriced %d products to %s\n", n, p.StringFixed(2))
	return nil
}
