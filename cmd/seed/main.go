package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/ikkim/storefront-backend/config"
	"github.com/ikkim/storefront-backend/internal/app/repository"
	"github.com/ikkim/storefront-backend/internal/app/service"
	"github.com/ikkim/storefront-backend/internal/db"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"github.com/xuri/excelize/v2"
)

// stockRow is one line of the stock sheet: branch code, product type code, quantity.
type stockRow struct {
	Line            int
	BranchCode      string
	ProductTypeCode string
	Quantity        int
}

func main() {
	assumeYes := flag.Bool("y", false, "skip the confirmation prompt")
	flag.Parse()
	if flag.NArg() < 1 {
		log.Fatal("Usage: go run cmd/seed/main.go [-y] <xlsx_file_path>")
	}
	filePath := flag.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.Initialize(logger.Config{Level: cfg.Log.Level, Format: "console", EnableColor: true})

	if err := db.Initialize(&cfg.Database); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}
	if err := db.Seed(); err != nil {
		log.Fatal("Failed to seed reference data:", err)
	}

	fmt.Printf("Reading XLSX file: %s\n", filePath)
	rows, skipped, err := readStockFromXLSX(filePath)
	if err != nil {
		log.Fatal("Failed to read XLSX:", err)
	}
	for _, e := range skipped {
		fmt.Printf("  skipped: %v\n", e)
	}
	fmt.Printf("Stock rows to import: %d (skipped %d)\n", len(rows), len(skipped))

	if !*assumeYes {
		fmt.Print("Do you want to proceed with the import? (yes/no): ")
		var confirm string
		fmt.Scanln(&confirm)
		if confirm != "yes" && confirm != "y" {
			fmt.Println("Import cancelled.")
			return
		}
	}

	gdb := db.GetDB()
	branches := repository.NewBranchRepository(gdb)
	products := repository.NewProductRepository(gdb)
	lookup := service.NewCatalogLookup(repository.NewUserRepository(gdb), branches, products)
	inventory := service.NewInventoryService(
		repository.NewInventoryRepository(gdb),
		repository.NewTxManager(gdb),
		lookup, lookup, nil,
	)

	imported, failed := importStock(context.Background(), rows, branches, products, inventory)
	fmt.Println("Import completed.")
	fmt.Printf("Rows imported: %d, failed: %d\n", imported, failed)
}

func readStockFromXLSX(filePath string) ([]stockRow, []error, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, nil, errors.New("no sheets found in XLSX file")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, errors.New("no data found in XLSX file")
	}

	parsed, skipped := parseStockRows(rows)
	return parsed, skipped, nil
}

// parseStockRows skips the header row and merges repeated (branch, product type) pairs.
func parseStockRows(rows [][]string) ([]stockRow, []error) {
	var (
		result  []stockRow
		skipped []error
	)
	index := make(map[string]int)

	for i, row := range rows {
		if i == 0 {
			continue
		}
		line := i + 1
		if len(row) < 3 {
			skipped = append(skipped, fmt.Errorf("line %d: expected 3 columns, got %d", line, len(row)))
			continue
		}

		branchCode := strings.TrimSpace(row[0])
		ptCode := strings.TrimSpace(row[1])
		if branchCode == "" || ptCode == "" {
			skipped = append(skipped, fmt.Errorf("line %d: branch and product type codes are required", line))
			continue
		}
		qty, err := strconv.Atoi(strings.TrimSpace(row[2]))
		if err != nil || qty < 0 {
			skipped = append(skipped, fmt.Errorf("line %d: invalid quantity %q", line, row[2]))
			continue
		}

		key := branchCode + "\x00" + ptCode
		if at, ok := index[key]; ok {
			result[at].Quantity += qty
			continue
		}
		index[key] = len(result)
		result = append(result, stockRow{Line: line, BranchCode: branchCode, ProductTypeCode: ptCode, Quantity: qty})
	}
	return result, skipped
}

// importStock stocks new (product type, branch) pairs and restocks existing ones
// through the inventory ledger, so every row leaves a movement behind.
func importStock(
	ctx context.Context,
	rows []stockRow,
	branches repository.BranchRepository,
	products repository.ProductRepository,
	inventory service.InventoryService,
) (imported, failed int) {
	for _, row := range rows {
		if err := importRow(ctx, row, branches, products, inventory); err != nil {
			logger.Warn("Stock row rejected", map[string]interface{}{
				"line":              row.Line,
				"branch_code":       row.BranchCode,
				"product_type_code": row.ProductTypeCode,
				"error":             err.Error(),
			})
			failed++
			continue
		}
		imported++
	}
	return imported, failed
}

func importRow(
	ctx context.Context,
	row stockRow,
	branches repository.BranchRepository,
	products repository.ProductRepository,
	inventory service.InventoryService,
) error {
	branch, err := branches.FindByCode(ctx, row.BranchCode)
	if err != nil {
		return fmt.Errorf("branch %s: %w", row.BranchCode, err)
	}
	pt, err := products.FindProductTypeByCode(ctx, row.ProductTypeCode)
	if err != nil {
		return fmt.Errorf("product type %s: %w", row.ProductTypeCode, err)
	}

	_, err = inventory.Stock(ctx, pt.ID, branch.ID, row.Quantity)
	if !errors.Is(err, apperrors.ErrAlreadyStocked) {
		return err
	}
	if row.Quantity == 0 {
		return nil
	}
	_, err = inventory.Reserve(ctx, pt.ID, branch.ID, row.Quantity)
	return err
}
