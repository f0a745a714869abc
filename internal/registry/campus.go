package registry

// Campus returns the default ERP registry: the entities the console may
// operate on, mirroring the campus data model. Identity (user), permission
// and financial entities are marked sensitive.
func Campus() *Registry {
	schemas := []EntitySchema{
		{
			Name:       "student",
			Table:      "students",
			Filterable: []string{"id", "roll_number", "department", "semester", "section", "cgpa", "admission_year"},
			Writable:   []string{"semester", "section", "cgpa"},
		},
		{
			Name:       "faculty",
			Table:      "faculty",
			Filterable: []string{"id", "employee_id", "designation", "department"},
			Writable:   []string{"designation", "department"},
		},
		{
			Name:       "course",
			Table:      "courses",
			Filterable: []string{"id", "code", "name", "semester", "credits", "department"},
			Writable:   []string{"name", "code", "semester", "credits"},
		},
		{
			Name:       "department",
			Table:      "departments",
			Filterable: []string{"id", "name", "code"},
			Writable:   []string{"name", "code"},
		},
		{
			Name:       "attendance",
			Table:      "attendance",
			Filterable: []string{"id", "date", "is_present", "method", "student_id", "course_id"},
			Writable:   []string{"is_present", "method"},
		},
		{
			Name:       "user",
			Table:      "users",
			Filterable: []string{"id", "email", "full_name", "role", "is_active"},
			Writable:   []string{"full_name", "role", "is_active"},
			Sensitive:  true,
		},
		{
			Name:       "invoice",
			Table:      "invoices",
			Filterable: []string{"id", "student_id", "invoice_number", "amount_due", "status"},
			Writable:   []string{"amount_due", "status", "description"},
			Sensitive:  true,
		},
		{
			Name:       "payment",
			Table:      "payments",
			Filterable: []string{"id", "student_id", "amount", "payment_method", "status"},
			Writable:   []string{"amount", "status", "notes"},
			Sensitive:  true,
		},
		{
			Name:       "salary_record",
			Table:      "salary_records",
			Filterable: []string{"id", "employee_id", "month", "year", "net_salary", "status"},
			Writable:   []string{"gross_salary", "deductions", "net_salary", "status"},
			Sensitive:  true,
		},
	}

	aliases := map[string]string{
		"students":    "student",
		"learner":     "student",
		"learners":    "student",
		"teacher":     "faculty",
		"teachers":    "faculty",
		"professor":   "faculty",
		"professors":  "faculty",
		"instructor":  "faculty",
		"instructors": "faculty",
		"courses":     "course",
		"subject":     "course",
		"subjects":    "course",
		"class":       "course",
		"classes":     "course",
		"departments": "department",
		"dept":        "department",
		"branch":      "department",
		"branches":    "department",
		"attendances": "attendance",
		"presence":    "attendance",
		"users":       "user",
		"account":     "user",
		"accounts":    "user",
		"invoices":    "invoice",
		"payments":    "payment",
		"fees":        "invoice",
		"salary":      "salary_record",
		"salaries":    "salary_record",
	}

	return New(schemas, aliases)
}
