package cli

import (
	"context"

	"github.com/juju/errors"
	"github.com/spf13/cobra"

	"school-server-go/models"
	"school-server-go/service"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Add sample staff and students to an empty store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		conn, staff, students, err := services(cmd.Context())
		if err != nil {
			return err
		}
		defer conn.Close()
		return seed(cmd.Context(), staff, students)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func str(s string) *string { return &s }

var (
	sampleStaff = []models.Staff{
		{FirstName: "Grace", LastName: str("Hopper"), Gender: str("female"), PhoneNumber: str("0700000001")},
		{FirstName: "Alan", LastName: str("Turing"), Gender: str("male"), PhoneNumber: str("0700000002")},
	}
	sampleStudents = []models.Student{
		{FirstName: "Alice", LastName: str("Mwangi"), Class: str("5B"), PhysicalAddress: str("12 Hill Road"), Status: true},
		{FirstName: "Natalie", LastName: str("Otieno"), Class: str("5B")},
		{FirstName: "Brian", LastName: str("Kamau"), Class: str("6A"), Status: true},
	}
)

// seed adds the sample records to each collection that is still empty.
// Failures on single records are logged and do not stop the run.
func seed(ctx context.Context, staff *service.StaffService, students *service.StudentService) error {
	if err := seedOne(ctx, staff, sampleStaff); err != nil {
		return errors.Annotate(err, "seeding staff")
	}
	if err := seedOne(ctx, students, sampleStudents); err != nil {
		return errors.Annotate(err, "seeding students")
	}
	return nil
}

func seedOne[T any, PT models.Entity[T]](ctx context.Context, svc *service.Service[T, PT], samples []T) error {
	collection := svc.Schema().Collection
	existing, err := svc.List(ctx, "")
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		logger.Infof("found %d %s records, skipping sample data", len(existing), collection)
		return nil
	}

	logger.Infof("no %s records found, adding sample data", collection)
	for i := range samples {
		if _, err := svc.Create(ctx, &samples[i]); err != nil {
			logger.Warningf("adding sample %s record %d: %v", collection, i+1, err)
		}
	}
	return nil
}
