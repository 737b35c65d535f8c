// Package sqlite предоставляет инфраструктуру для встроенного хранилища на SQLite.
//
// Основные возможности:
//   - Открытие БД с PRAGMA-настройками, применяемыми к каждому соединению
//   - Транзакции с IMMEDIATE-блокировкой и повтором при SQLITE_BUSY
//   - Миграции golang-migrate из встроенной файловой системы (embed.FS)
//
// Пример:
//
//	db, err := sqlite.NewDB(ctx, "data/dynsched.db", sqlite.DefaultDBOptions())
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//
//	if _, err := sqlite.ApplyMigrations("data/dynsched.db", migrations.FS, migrations.SQLiteDir); err != nil {
//		return err
//	}
//
//	runner := sqlite.NewTxRunner(db)
//	err = runner.WithinTx(ctx, func(ctx context.Context) error {
//		_, err := runner.Querier(ctx).ExecContext(ctx, "UPDATE job_config SET cron = ? WHERE job_name = ?", cron, name)
//		return err
//	})
package sqlite
