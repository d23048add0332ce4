package database

import (
	"strings"
	"testing"
)

func readMigration(t *testing.T, name string) string {
	t.Helper()
	content, err := migrationsFS.ReadFile(migrationsDir + "/" + name)
	if err != nil {
		t.Fatalf("Failed to read migration %s: %v", name, err)
	}
	return string(content)
}

func TestMigrationFilesExist(t *testing.T) {
	files, err := MigrationFiles()
	if err != nil {
		t.Fatal(err)
	}

	expected := []string{
		"00001_create_users_table.sql",
		"00002_create_user_profiles_table.sql",
		"00003_create_refresh_tokens_table.sql",
		"00004_create_products_table.sql",
		"00005_create_orders_table.sql",
		"00006_create_order_items_table.sql",
		"00007_create_updated_at_trigger.sql",
	}
	if len(files) != len(expected) {
		t.Fatalf("Expected %d migrations, got %d: %v", len(expected), len(files), files)
	}
	for i, name := range expected {
		if files[i] != name {
			t.Errorf("Migration %d: expected %s, got %s", i, name, files[i])
		}
	}
}

func TestMigrationFilesHaveUpAndDown(t *testing.T) {
	files, err := MigrationFiles()
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range files {
		content := readMigration(t, name)
		for _, directive := range []string{
			"-- +goose Up",
			"-- +goose Down",
			"-- +goose StatementBegin",
			"-- +goose StatementEnd",
		} {
			if !strings.Contains(content, directive) {
				t.Errorf("Migration %s missing %q", name, directive)
			}
		}
	}
}

func TestMigrationFilesCreateExpectedTables(t *testing.T) {
	tables := map[string]string{
		"users":          "00001_create_users_table.sql",
		"user_profiles":  "00002_create_user_profiles_table.sql",
		"refresh_tokens": "00003_create_refresh_tokens_table.sql",
		"products":       "00004_create_products_table.sql",
		"orders":         "00005_create_orders_table.sql",
		"order_items":    "00006_create_order_items_table.sql",
	}

	for table, file := range tables {
		content := readMigration(t, file)
		if !strings.Contains(content, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Errorf("Migration %s does not create table %s", file, table)
		}
		if !strings.Contains(content, "DROP TABLE IF EXISTS "+table+";") {
			t.Errorf("Migration %s does not drop table %s", file, table)
		}
	}
}

func TestProfilesDefaultToCustomerRole(t *testing.T) {
	content := readMigration(t, "00002_create_user_profiles_table.sql")

	if !strings.Contains(content, "DEFAULT 'customer'") {
		t.Error("user_profiles.role must default to customer")
	}
	if !strings.Contains(content, "CHECK (role IN ('admin', 'customer'))") {
		t.Error("user_profiles.role missing check constraint")
	}
}

func TestProductsTableHasRequiredColumns(t *testing.T) {
	content := readMigration(t, "00004_create_products_table.sql")

	for _, column := range []string{
		"id UUID PRIMARY KEY",
		"name VARCHAR",
		"description TEXT",
		"price NUMERIC(10, 2)",
		"category VARCHAR",
		"image_url VARCHAR",
		"stock_quantity INTEGER",
		"featured BOOLEAN",
		"rating NUMERIC(2, 1)",
		"added_by UUID",
		"created_at TIMESTAMP",
	} {
		if !strings.Contains(content, column) {
			t.Errorf("Products table missing column definition: %s", column)
		}
	}
}

func TestOrdersTableHasStatusConstraint(t *testing.T) {
	content := readMigration(t, "00005_create_orders_table.sql")

	if !strings.Contains(content, "CHECK (status IN ('pending', 'completed', 'failed'))") {
		t.Error("Orders table status constraint does not match the order lifecycle")
	}
	if !strings.Contains(content, "payment_reference") {
		t.Error("Orders table missing payment_reference")
	}
}

func TestOrderItemsRequirePositiveQuantity(t *testing.T) {
	content := readMigration(t, "00006_create_order_items_table.sql")

	if !strings.Contains(content, "CHECK (quantity > 0)") {
		t.Error("order_items.quantity must be positive")
	}
}
