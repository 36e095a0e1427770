package report

import (
	"strconv"
	"time"

	"github.com/trezcool/skytraining/core/enrollment"
	"github.com/trezcool/skytraining/core/user"
)

type (
	MonthCount struct {
		Year  int `json:"year"`
		Month int `json:"month"`
		Count int `json:"count"`
	}

	MonthRevenue struct {
		Year    int     `json:"year"`
		Month   int     `json:"month"`
		Count   int     `json:"count"`
		Revenue float64 `json:"revenue"`
	}

	CountBucket struct {
		ID    string `json:"id"`
		Count int    `json:"count"`
	}

	AmountBucket struct {
		ID          string  `json:"id"`
		Count       int     `json:"count"`
		TotalAmount float64 `json:"totalAmount"`
		PaidAmount  float64 `json:"paidAmount"`
	}

	PopularCourse struct {
		ID              string `json:"id"`
		Title           string `json:"title"`
		EnrollmentCount int    `json:"enrollmentCount"`
	}

	CompletionRate struct {
		ID                   string  `json:"id"`
		Title                string  `json:"title"`
		TotalEnrollments     int     `json:"totalEnrollments"`
		CompletedEnrollments int     `json:"completedEnrollments"`
		CompletionRate       float64 `json:"completionRate"`
	}
)

type Dashboard struct {
	Overview struct {
		TotalStudents     int     `json:"totalStudents"`
		TotalCourses      int     `json:"totalCourses"`
		TotalEnrollments  int     `json:"totalEnrollments"`
		ActiveEnrollments int     `json:"activeEnrollments"`
		TotalRevenue      float64 `json:"totalRevenue"`
		MonthlyRevenue    float64 `json:"monthlyRevenue"`
	} `json:"overview"`
	RecentEnrollments []enrollment.Detail `json:"recentEnrollments"`
	StudentGrowth     []MonthCount        `json:"studentGrowth"`
	PopularCourses    []PopularCourse     `json:"popularCourses"`
	PaymentStats      []AmountBucket      `json:"paymentStats"`
}

type Analytics struct {
	EnrollmentTrends   []MonthRevenue   `json:"enrollmentTrends"`
	CompletionRates    []CompletionRate `json:"completionRates"`
	PaymentAnalytics   []AmountBucket   `json:"paymentAnalytics"`
	StudentsByLocation []CountBucket    `json:"studentsByLocation"`
}

type CourseStats struct {
	Overview struct {
		TotalCourses    int `json:"totalCourses"`
		ActiveCourses   int `json:"activeCourses"`
		DraftCourses    int `json:"draftCourses"`
		InactiveCourses int `json:"inactiveCourses"`
	} `json:"overview"`
	CoursesByCategory []CountBucket   `json:"coursesByCategory"`
	CoursesByLevel    []CountBucket   `json:"coursesByLevel"`
	PopularCourses    []PopularCourse `json:"popularCourses"`
}

type EnrollmentStats struct {
	Overview struct {
		TotalEnrollments     int `json:"totalEnrollments"`
		ActiveEnrollments    int `json:"activeEnrollments"`
		CompletedEnrollments int `json:"completedEnrollments"`
		DroppedEnrollments   int `json:"droppedEnrollments"`
	} `json:"overview"`
	PaymentStats       []CountBucket       `json:"paymentStats"`
	EnrollmentsByMonth []MonthCount        `json:"enrollmentsByMonth"`
	RecentEnrollments  []enrollment.Detail `json:"recentEnrollments"`
}

type UserStats struct {
	Overview struct {
		TotalUsers    int `json:"totalUsers"`
		TotalStudents int `json:"totalStudents"`
		TotalAdmins   int `json:"totalAdmins"`
		ActiveUsers   int `json:"activeUsers"`
	} `json:"overview"`
	RecentUsers  []user.User  `json:"recentUsers"`
	UsersByMonth []MonthCount `json:"usersByMonth"`
}

// Student is a roster row: a student with their enrollments.
type Student struct {
	user.User
	Enrollments   []enrollment.Detail `json:"enrollments"`
	TotalCourses  int                 `json:"totalCourses"`
	ActiveCourses int                 `json:"activeCourses"`
}

type StudentStatistics struct {
	TotalCourses     int     `json:"totalCourses"`
	ActiveCourses    int     `json:"activeCourses"`
	CompletedCourses int     `json:"completedCourses"`
	TotalCourseFees  float64 `json:"totalCourseFees"`
	TotalPaid        float64 `json:"totalPaid"`
	PendingAmount    float64 `json:"pendingAmount"`
}

type StudentDetail struct {
	user.User
	Enrollments []enrollment.Detail `json:"enrollments"`
	Statistics  StudentStatistics   `json:"statistics"`
}

// Export types
const (
	ExportStudents    = "students"
	ExportEnrollments = "enrollments"
	ExportCourses     = "courses"
)

type Export struct {
	Type      string      `json:"exportType"`
	Count     int         `json:"count"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Filename is the attachment name of the export, e.g. `students_export_1700000000000.json`.
func (e Export) Filename() string {
	return e.Type + "_export_" + strconv.FormatInt(e.Timestamp.UnixMilli(), 10) + ".json"
}
