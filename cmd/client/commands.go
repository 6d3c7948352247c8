package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/atinyakov/kongtze/internal/client/api"
	"github.com/atinyakov/kongtze/internal/client/schedule"
	"github.com/atinyakov/kongtze/internal/models"
)

func dayName(d int) string {
	if d < 0 || d >= len(models.DayNames) {
		return strconv.Itoa(d)
	}
	return models.DayNames[d]
}

func (s *shell) login(ctx context.Context, args []string) error {
	var creds models.UserLogin
	if len(args) > 0 && args[0] == "-pin" {
		pin, err := s.promptSecret("PIN")
		if err != nil {
			return err
		}
		creds.PIN = pin
	} else {
		creds.Email = s.prompt("Email")
		pw, err := s.promptSecret("Password")
		if err != nil {
			return err
		}
		creds.Password = pw
	}
	if err := s.auth.Login(ctx, creds); err != nil {
		return err
	}
	s.printf("Logged in as %s\n", s.auth.State().User.Name)
	return nil
}

func (s *shell) logout(ctx context.Context) error {
	if err := s.auth.Logout(ctx); err != nil {
		return err
	}
	s.println("Logged out")
	return nil
}

func (s *shell) me(ctx context.Context) error {
	if err := s.auth.RefreshUser(ctx); err != nil {
		return err
	}
	st := s.auth.State()
	if !st.IsAuthenticated {
		s.println("Not logged in")
		return nil
	}
	role := "student"
	if st.User.IsParent {
		role = "parent"
	}
	s.printf("#%d %s (%s)", st.User.UserID, st.User.Name, role)
	if st.User.Email != nil {
		s.printf(" <%s>", *st.User.Email)
	}
	s.println()
	return nil
}

func (s *shell) registerParent(ctx context.Context) error {
	in := models.UserCreateParent{Name: s.prompt("Name"), Email: s.prompt("Email")}
	pw, err := s.promptSecret("Password")
	if err != nil {
		return err
	}
	in.Password = pw
	if _, err := s.api.Auth.RegisterParent(ctx, in); err != nil {
		return err
	}
	if err := s.auth.Login(ctx, models.UserLogin{Email: in.Email, Password: in.Password}); err != nil {
		return err
	}
	s.printf("Registered and logged in as %s\n", in.Name)
	return nil
}

func (s *shell) registerStudent(ctx context.Context) error {
	in := models.UserCreateStudent{Name: s.prompt("Student name")}
	pin, err := s.promptSecret("4-digit PIN")
	if err != nil {
		return err
	}
	in.PIN = pin
	u, err := s.api.Auth.RegisterStudent(ctx, in, s.token())
	if err != nil {
		return err
	}
	s.printf("Registered student #%d %s\n", u.UserID, u.Name)
	return nil
}

func (s *shell) subjects(ctx context.Context) error {
	list, err := s.api.Subjects.List(ctx, s.token())
	if err != nil {
		return err
	}
	for _, sub := range list {
		s.printf("%3d  %s\n", sub.SubjectID, sub.DisplayName)
	}
	return nil
}

func (s *shell) subjectNames(ctx context.Context) map[int]string {
	names := map[int]string{}
	list, err := s.api.Subjects.List(ctx, s.token())
	if err != nil {
		return names
	}
	for _, sub := range list {
		names[sub.SubjectID] = sub.DisplayName
	}
	return names
}

func (s *shell) sessions(ctx context.Context, args []string) error {
	sub := ""
	if len(args) > 0 {
		sub = args[0]
	}
	switch sub {
	case "":
		list, err := s.api.StudySessions.List(ctx, s.token())
		if err != nil {
			return err
		}
		for _, ss := range list {
			s.printf("%4d  %-9s %s  %3d min  subject %d\n",
				ss.SessionID, dayName(ss.DayOfWeek), ss.StartTime, ss.DurationMinutes, ss.SubjectID)
		}
		return nil
	case "add":
		in := models.StudySessionCreate{
			SubjectID:       s.promptInt("Subject id", 1),
			DayOfWeek:       s.promptInt("Day of week (0=Monday)", 0),
			StartTime:       s.prompt("Start time (HH:MM)"),
			DurationMinutes: s.promptInt("Duration minutes", 30),
			Title:           s.prompt("Title (optional)"),
		}
		created, err := s.api.StudySessions.Create(ctx, in, s.token())
		if err != nil {
			return err
		}
		s.printf("Created session #%d\n", created.SessionID)
		return nil
	case "edit":
		id, err := parseID(args[1:], "sessions edit <id>")
		if err != nil {
			return err
		}
		var in models.StudySessionUpdate
		if v := s.prompt("Start time (HH:MM, empty to keep)"); v != "" {
			in.StartTime = &v
		}
		if v := s.prompt("Duration minutes (empty to keep)"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid duration %q", v)
			}
			in.DurationMinutes = &n
		}
		if v := s.prompt("Title (empty to keep)"); v != "" {
			in.Title = &v
		}
		updated, err := s.api.StudySessions.Update(ctx, id, in, s.token())
		if err != nil {
			return err
		}
		s.printf("Updated session #%d\n", updated.SessionID)
		return nil
	case "delete":
		id, err := parseID(args[1:], "sessions delete <id>")
		if err != nil {
			return err
		}
		if err := s.api.StudySessions.Delete(ctx, id, s.token()); err != nil {
			return err
		}
		s.println("Session deleted")
		return nil
	default:
		return usage("sessions [add | edit <id> | delete <id>]")
	}
}

func (s *shell) schedule(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage("schedule generate | schedule apply [-tests]")
	}
	switch args[0] {
	case "generate":
		ids, err := parseIDs(s.prompt("Subject ids (comma separated)"))
		if err != nil {
			return err
		}
		prefs := models.SchedulePreferences{Subjects: ids, SubjectDifficulties: map[int]string{}}
		for _, id := range ids {
			if v := s.prompt(fmt.Sprintf("Difficulty for subject %d (beginner/intermediate/advanced)", id)); v != "" {
				prefs.SubjectDifficulties[id] = v
			}
		}
		hours, err := strconv.ParseFloat(s.prompt("Hours per day"), 64)
		if err != nil {
			return fmt.Errorf("invalid hours per day: %w", err)
		}
		prefs.HoursPerDay = hours
		prefs.StartTime = s.prompt("Earliest start (HH:MM)")
		prefs.EndTime = s.prompt("Latest end (HH:MM)")
		prefs.Goals = s.prompt("Goals (optional)")

		gen, err := s.api.StudySessions.GenerateSchedule(ctx, prefs, s.token())
		if err != nil {
			return err
		}
		s.pending, s.pendingPrefs = gen, prefs
		for _, item := range gen.Schedule {
			s.printf("  %-9s %s  %3d min  subject %d  difficulty %d\n",
				dayName(item.DayOfWeek), item.StartTime, item.DurationMinutes, item.SubjectID, item.RecommendedDifficulty)
		}
		s.println("Run 'schedule apply' to add these sessions to your calendar.")
		return nil
	case "apply":
		if s.pending == nil {
			return fmt.Errorf("no generated schedule; run 'schedule generate' first")
		}
		opts := schedule.Options{
			Difficulties:  s.pendingPrefs.SubjectDifficulties,
			GenerateTests: len(args) > 1 && args[1] == "-tests",
		}
		if opts.GenerateTests {
			opts.SubjectNames = s.subjectNames(ctx)
		}
		res, err := s.applier.Apply(ctx, s.token(), *s.pending, opts)
		s.printf("Created %d sessions and %d tests\n", len(res.Sessions), len(res.Tests))
		if err != nil {
			return err
		}
		s.pending = nil
		return nil
	default:
		return usage("schedule generate | schedule apply [-tests]")
	}
}

func (s *shell) tests(ctx context.Context, args []string) error {
	sub := ""
	if len(args) > 0 {
		sub = args[0]
	}
	switch sub {
	case "":
		list, err := s.api.Tests.List(ctx, nil, s.token())
		if err != nil {
			return err
		}
		for _, t := range list {
			s.printf("%4d  %-40s %2d questions  %d min\n", t.TestID, t.Title, t.TotalQuestions, t.TimeLimitMinutes)
		}
		return nil
	case "new":
		in := models.TestCreate{
			SubjectID:       s.promptInt("Subject id", 1),
			Title:           s.prompt("Title"),
			DifficultyLevel: s.promptInt("Difficulty (1-4)", models.DifficultyIntermediate),
			TotalQuestions:  s.promptInt("Questions", 10),
			GenerationMode:  models.GenerationMode(s.prompt("Mode (pure_ai/notes_based/homework_based, empty for pure_ai)")),
		}
		switch in.GenerationMode {
		case models.NotesBased:
			ids, err := parseIDs(s.prompt("Note ids"))
			if err != nil {
				return err
			}
			in.NoteIDs = ids
		case models.HomeworkBased:
			ids, err := parseIDs(s.prompt("Homework ids"))
			if err != nil {
				return err
			}
			in.HomeworkIDs = ids
		}
		t, err := s.api.Tests.Create(ctx, in, s.token())
		if err != nil {
			return err
		}
		s.printf("Created test #%d with %d questions\n", t.TestID, len(t.Questions))
		return nil
	case "take":
		id, err := parseID(args[1:], "tests take <id>")
		if err != nil {
			return err
		}
		return s.takeTest(ctx, id)
	case "results":
		if len(args) > 1 {
			id, err := parseID(args[1:], "tests results [<result-id>]")
			if err != nil {
				return err
			}
			r, err := s.api.Tests.Result(ctx, id, s.token())
			if err != nil {
				return err
			}
			s.printf("Score %d/%d (%.0f%%), %d points\n", r.Score, r.TotalScore, r.Percentage, r.RewardPoints)
			for _, q := range r.Questions {
				mark := "x"
				if r.Answers[strconv.Itoa(q.QuestionID)] == q.CorrectAnswer {
					mark = "ok"
				}
				s.printf("  [%s] %s  answer %s\n", mark, q.QuestionText, q.CorrectAnswer)
			}
			return nil
		}
		list, err := s.api.Tests.Results(ctx, s.token())
		if err != nil {
			return err
		}
		for _, r := range list {
			s.printf("%4d  test %d  %d/%d  +%d points\n", r.ResultID, r.TestID, r.Score, r.TotalScore, r.RewardPoints)
		}
		return nil
	default:
		return usage("tests [new | take <id> | results [<result-id>]]")
	}
}

func (s *shell) takeTest(ctx context.Context, id int) error {
	t, err := s.api.Tests.Get(ctx, id, s.token())
	if err != nil {
		return err
	}
	s.printf("%s: %d questions, %d minutes\n", t.Title, len(t.Questions), t.TimeLimitMinutes)
	started := time.Now()
	answers := make(map[string]string, len(t.Questions))
	for i, q := range t.Questions {
		s.printf("\n%d. %s\n", i+1, q.QuestionText)
		letters := make([]string, 0, len(q.Options))
		for l := range q.Options {
			letters = append(letters, l)
		}
		sort.Strings(letters)
		for _, l := range letters {
			s.printf("   %s) %s\n", l, q.Options[l])
		}
		if a := strings.ToUpper(s.prompt("Answer")); a != "" {
			answers[strconv.Itoa(q.QuestionID)] = a
		}
	}
	res, err := s.api.Tests.Submit(ctx, models.TestSubmission{
		TestID:           t.TestID,
		Answers:          answers,
		TimeTakenSeconds: int(time.Since(started).Seconds()),
	}, s.token())
	if err != nil {
		return err
	}
	s.printf("Score %d/%d, earned %d points (result #%d)\n", res.Score, res.TotalScore, res.RewardPoints, res.ResultID)
	return nil
}

// openPhoto parses "<subject-id> <file> <title...>".
func openPhoto(args []string, what string) (int, string, *os.File, error) {
	if len(args) < 3 {
		return 0, "", nil, usage(what + " upload <subject-id> <file> <title...>")
	}
	subjectID, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, "", nil, fmt.Errorf("invalid subject id %q", args[0])
	}
	f, err := os.Open(args[1])
	if err != nil {
		return 0, "", nil, err
	}
	return subjectID, strings.Join(args[2:], " "), f, nil
}

func (s *shell) homework(ctx context.Context, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub = args[0]
	}
	switch sub {
	case "list":
		list, err := s.api.Homework.List(ctx, api.HomeworkFilter{}, s.token())
		if err != nil {
			return err
		}
		for _, h := range list {
			reviewed := ""
			if h.ParentReviewed {
				reviewed = "  (reviewed)"
			}
			s.printf("%4d  %-30s subject %d%s\n", h.HomeworkID, h.Title, h.SubjectID, reviewed)
		}
		return nil
	case "upload":
		subjectID, title, f, err := openPhoto(args[1:], "homework")
		if err != nil {
			return err
		}
		defer f.Close()
		h, err := s.api.Homework.Upload(ctx, subjectID, title, api.Photo{Filename: f.Name(), Content: f}, s.token())
		if err != nil {
			return err
		}
		s.printf("Uploaded homework #%d\n", h.HomeworkID)
		if h.OCRText != nil {
			s.println(*h.OCRText)
		}
		return nil
	case "review":
		id, err := parseID(args[1:], "homework review <id>")
		if err != nil {
			return err
		}
		reviewed := true
		if _, err := s.api.Homework.Update(ctx, id, models.HomeworkUpdate{ParentReviewed: &reviewed}, s.token()); err != nil {
			return err
		}
		s.println("Homework marked as reviewed")
		return nil
	case "delete":
		id, err := parseID(args[1:], "homework delete <id>")
		if err != nil {
			return err
		}
		if err := s.api.Homework.Delete(ctx, id, s.token()); err != nil {
			return err
		}
		s.println("Homework deleted")
		return nil
	default:
		return usage("homework [list | upload | review <id> | delete <id>]")
	}
}

func (s *shell) notes(ctx context.Context, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub = args[0]
	}
	switch sub {
	case "list":
		list, err := s.api.ClassNotes.List(ctx, nil, s.token())
		if err != nil {
			return err
		}
		for _, n := range list {
			s.printf("%4d  %-30s subject %d\n", n.NoteID, n.Title, n.SubjectID)
		}
		return nil
	case "upload":
		subjectID, title, f, err := openPhoto(args[1:], "notes")
		if err != nil {
			return err
		}
		defer f.Close()
		n, err := s.api.ClassNotes.Upload(ctx, subjectID, title, api.Photo{Filename: f.Name(), Content: f}, s.token())
		if err != nil {
			return err
		}
		s.printf("Uploaded note #%d\n", n.NoteID)
		for _, t := range n.Topics {
			s.printf("  topic: %s (%.0f%%)\n", t.TopicName, t.Confidence*100)
		}
		return nil
	case "delete":
		id, err := parseID(args[1:], "notes delete <id>")
		if err != nil {
			return err
		}
		if err := s.api.ClassNotes.Delete(ctx, id, s.token()); err != nil {
			return err
		}
		s.println("Note deleted")
		return nil
	default:
		return usage("notes [list | upload | delete <id>]")
	}
}

func (s *shell) rewards(ctx context.Context, args []string) error {
	sub := "balance"
	if len(args) > 0 {
		sub = args[0]
	}
	switch sub {
	case "balance":
		b, err := s.api.Rewards.Balance(ctx, s.token())
		if err != nil {
			return err
		}
		s.printf("Balance: %d points (earned %d in total)\n", b.Balance, b.TotalEarned)
		return nil
	case "history":
		limit := api.DefaultHistoryLimit
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid limit %q", args[1])
			}
			limit = n
		}
		list, err := s.api.Rewards.History(ctx, limit, s.token())
		if err != nil {
			return err
		}
		for _, r := range list {
			s.printf("%s  %+5d  = %5d  %s\n", r.CreatedAt.Format("2006-01-02 15:04"), r.Points, r.Balance, r.Reason)
		}
		return nil
	case "gifts":
		var tier models.GiftTier
		if len(args) > 1 {
			tier = models.GiftTier(args[1])
		}
		list, err := s.api.Rewards.Gifts(ctx, tier, s.token())
		if err != nil {
			return err
		}
		for _, g := range list {
			s.printf("%4d  %-6s %-30s %.0f%%\n", g.GiftID, g.Tier, g.Name, g.Probability*100)
		}
		return nil
	case "draw":
		res, err := s.api.Rewards.LuckyDraw(ctx, s.token())
		if err != nil {
			return err
		}
		s.printf("You won: %s (%s)! %d points left.\n", res.Gift.Name, res.Gift.Tier, res.RemainingBalance)
		return nil
	default:
		return usage("rewards [balance | history [<limit>] | gifts [<tier>] | draw]")
	}
}

func (s *shell) templates(ctx context.Context, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub = args[0]
	}
	switch sub {
	case "list":
		f := api.PromptTemplateFilter{IncludeInactive: len(args) > 1 && args[1] == "-all"}
		list, err := s.api.PromptTemplates.List(ctx, f, s.token())
		if err != nil {
			return err
		}
		for _, t := range list {
			flags := ""
			if !t.IsActive {
				flags += " inactive"
			}
			if t.IsSystem {
				flags += " system"
			}
			s.printf("%4d  %-30s %s%s\n", t.TemplateID, t.TemplateName, t.TemplateType, flags)
		}
		return nil
	case "edit":
		id, err := parseID(args[1:], "templates edit <id>")
		if err != nil {
			return err
		}
		t, err := s.api.PromptTemplates.Get(ctx, id, s.token())
		if err != nil {
			return err
		}
		s.println(t.PromptTemplate)
		var in models.PromptTemplateUpdate
		if v := s.prompt("New template text (empty to keep)"); v != "" {
			in.PromptTemplate = &v
		}
		if v := s.prompt("Active? (y/n, empty to keep)"); v != "" {
			active := strings.HasPrefix(strings.ToLower(v), "y")
			in.IsActive = &active
		}
		if _, err := s.api.PromptTemplates.Update(ctx, id, in, s.token()); err != nil {
			return err
		}
		s.println("Template updated")
		return nil
	case "preview":
		id, err := parseID(args[1:], "templates preview <id>")
		if err != nil {
			return err
		}
		vars := map[string]string{}
		for {
			kv := s.prompt("Variable name=value (empty to finish)")
			if kv == "" {
				break
			}
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				s.println("Expected name=value.")
				continue
			}
			vars[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
		p, err := s.api.PromptTemplates.Preview(ctx, id, vars, s.token())
		if err != nil {
			return err
		}
		s.println(p.RenderedPrompt)
		return nil
	default:
		return usage("templates [list [-all] | edit <id> | preview <id>]")
	}
}

func (s *shell) profile(ctx context.Context, args []string) error {
	id, err := parseID(args, "profile <student-id>")
	if err != nil {
		return err
	}
	p, err := s.api.Students.Profile(ctx, id, s.token())
	if err != nil {
		return err
	}
	s.printf("Student #%d\n", p.UserID)
	if p.GradeLevel != nil {
		s.printf("  grade: %s\n", *p.GradeLevel)
	}
	if p.LearningPace != nil {
		s.printf("  pace: %s\n", *p.LearningPace)
	}
	if len(p.Strengths) > 0 {
		s.printf("  strengths: %s\n", strings.Join(p.Strengths, ", "))
	}
	if len(p.Weaknesses) > 0 {
		s.printf("  weaknesses: %s\n", strings.Join(p.Weaknesses, ", "))
	}
	return nil
}
