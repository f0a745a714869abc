// Command seed loads demo ERP data for local development.
package main

import (
	"database/sql"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/campusiq/opsconsole/internal/config"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("refusing to seed a production database")
	}

	db, err := sql.Open("postgres", cfg.GetDatabaseURL())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	statements := []string{
		`INSERT INTO departments (name, code) VALUES
			('Computer Science', 'CSE'),
			('Electronics', 'ECE'),
			('Mechanical', 'ME')
		ON CONFLICT (code) DO NOTHING`,

		`INSERT INTO users (email, full_name, role, is_active, department_id) VALUES
			('admin@campus.edu', 'Registrar', 'admin', TRUE, NULL),
			('rao@campus.edu', 'A. Rao', 'faculty', TRUE, 'CSE'),
			('mira@campus.edu', 'Mira S', 'student', TRUE, NULL)
		ON CONFLICT (email) DO NOTHING`,

		`INSERT INTO students (roll_number, department, semester, section, cgpa, admission_year) VALUES
			('CSE2301', 'CSE', 4, 'A', 8.4, 2023),
			('CSE2302', 'CSE', 4, 'A', 7.1, 2023),
			('CSE2303', 'CSE', 4, 'B', 6.2, 2023),
			('ECE2301', 'ECE', 4, 'A', 7.8, 2023),
			('ME2201', 'ME', 6, 'A', 8.9, 2022)
		ON CONFLICT (roll_number) DO NOTHING`,

		`UPDATE students SET user_id = (SELECT id FROM users WHERE email = 'mira@campus.edu')
			WHERE roll_number = 'CSE2301' AND user_id IS NULL`,

		`INSERT INTO faculty (employee_id, designation, department) VALUES
			('F-101', 'Professor', 'CSE'),
			('F-102', 'Assistant Professor', 'CSE'),
			('F-201', 'Professor', 'ECE')
		ON CONFLICT (employee_id) DO NOTHING`,

		`INSERT INTO courses (code, name, semester, credits, department) VALUES
			('CS301', 'Operating Systems', 4, 4, 'CSE'),
			('CS302', 'Databases', 4, 4, 'CSE'),
			('EC301', 'Signals', 4, 3, 'ECE')
		ON CONFLICT (code) DO NOTHING`,

		`INSERT INTO attendance (date, is_present, method, student_id, course_id)
			SELECT CURRENT_DATE, TRUE, 'manual', s.id, c.id
			FROM students s, courses c
			WHERE s.roll_number = 'CSE2301' AND c.code = 'CS301'
			AND NOT EXISTS (
				SELECT 1 FROM attendance a WHERE a.student_id = s.id AND a.course_id = c.id AND a.date = CURRENT_DATE
			)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			log.Fatalf("Seed statement failed: %v", err)
		}
	}

	log.Println("Demo data seeded")
	os.Exit(0)
}
